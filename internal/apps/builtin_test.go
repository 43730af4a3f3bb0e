package apps

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/cvalchemist/internal/config"
	"github.com/mesh-intelligence/cvalchemist/internal/llm"
	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

type stubModel struct{ reply string }

func (m stubModel) Generate(context.Context, string) (string, error) { return m.reply, nil }

func withModel(t *testing.T, fn func(context.Context, llm.Options, *zap.Logger) (llm.Model, error)) {
	t.Helper()
	orig := newModel
	t.Cleanup(func() { newModel = orig })
	newModel = fn
}

func testSettings(t *testing.T) *config.Settings {
	s := config.Default()
	s.Store.DataDir = t.TempDir()
	s.App.Dir = t.TempDir()
	return &s
}

func TestNewResumeApp_Serves(t *testing.T) {
	withModel(t, func(context.Context, llm.Options, *zap.Logger) (llm.Model, error) {
		return stubModel{reply: "Rewritten"}, nil
	})
	settings := testSettings(t)
	require.NoError(t, os.WriteFile(filepath.Join(settings.App.Dir, "index.html"), []byte("home"), 0o644))

	app, err := NewResumeApp(context.Background(), Env{WorkerID: 1, Workers: 4, Settings: settings})
	require.NoError(t, err)
	defer app.Close()

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home", rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rewrite", strings.NewReader(`{"text":"cv"}`))
	req.Header.Set("Content-Type", "application/json")
	app.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Rewritten", body["optimized_text"])

	_, err = os.Stat(filepath.Join(settings.Store.DataDir, "results.db"))
	assert.NoError(t, err, "default backend is the shared sqlite file")
}

func TestNewResumeApp_ModelFailureStillBoots(t *testing.T) {
	withModel(t, func(context.Context, llm.Options, *zap.Logger) (llm.Model, error) {
		return nil, errors.New("could not find default credentials")
	})

	app, err := NewResumeApp(context.Background(), Env{Settings: testSettings(t)})
	require.NoError(t, err)
	defer app.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/rewrite", strings.NewReader(`{"text":"cv"}`))
	req.Header.Set("Content-Type", "application/json")
	app.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Error: model is not initialized")

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewResumeApp_StoreFailure(t *testing.T) {
	withModel(t, func(context.Context, llm.Options, *zap.Logger) (llm.Model, error) {
		return stubModel{}, nil
	})
	settings := testSettings(t)
	settings.Store = types.Config{Backend: types.BackendRedis, RedisURL: "redis://127.0.0.1:1/0"}

	_, err := NewResumeApp(context.Background(), Env{Settings: settings})
	assert.Error(t, err)
}

func TestNewResumeApp_PassesModelOptions(t *testing.T) {
	var got llm.Options
	withModel(t, func(_ context.Context, opts llm.Options, _ *zap.Logger) (llm.Model, error) {
		got = opts
		return stubModel{}, nil
	})
	settings := testSettings(t)
	settings.Store.Backend = types.BackendMemory
	settings.LLM.Project = "proj-x"

	app, err := NewResumeApp(context.Background(), Env{Settings: settings, Workers: 1})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	assert.Equal(t, llm.Options{Model: config.DefaultModel, Project: "proj-x", Location: config.DefaultLocation}, got)
}
