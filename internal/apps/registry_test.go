package apps

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopFactory(context.Context, Env) (*App, error) {
	return &App{Handler: http.NotFoundHandler()}, nil
}

func TestParseEntryPoint(t *testing.T) {
	tests := []struct {
		raw     string
		want    EntryPoint
		wantErr bool
	}{
		{raw: "main:app", want: EntryPoint{Module: "main", Object: "app"}},
		{raw: " pkg.sub : handler ", want: EntryPoint{Module: "pkg.sub", Object: "handler"}},
		{raw: "main", wantErr: true},
		{raw: ":app", wantErr: true},
		{raw: "main:", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "a:b:c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseEntryPoint(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEntryPointInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("demo:app", noopFactory))

	f, err := r.Lookup(EntryPoint{Module: "demo", Object: "app"})
	require.NoError(t, err)
	app, err := f(context.Background(), Env{})
	require.NoError(t, err)
	assert.NotNil(t, app.Handler)

	_, err = r.Lookup(EntryPoint{Module: "demo", Object: "other"})
	assert.ErrorIs(t, err, ErrEntryPointNotFound)

	assert.ErrorIs(t, r.Register("demo:app", noopFactory), ErrEntryPointDuplicate)
	assert.ErrorIs(t, r.Register("broken", noopFactory), ErrEntryPointInvalid)
	assert.ErrorIs(t, r.Register("demo:nil", nil), ErrNilFactory)
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("b:app", noopFactory)
	r.MustRegister("a:app", noopFactory)

	ep, f, err := r.Resolve("a:app")
	require.NoError(t, err)
	assert.Equal(t, "a:app", ep.String())
	assert.NotNil(t, f)

	_, _, err = r.Resolve("missing:app")
	assert.ErrorIs(t, err, ErrEntryPointNotFound)

	_, _, err = r.Resolve("nocolon")
	assert.ErrorIs(t, err, ErrEntryPointInvalid)

	assert.Equal(t, []string{"a:app", "b:app"}, r.Names())
}

func TestMustRegister_Panics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("x:y", noopFactory)
	assert.Panics(t, func() { r.MustRegister("x:y", noopFactory) })
}

func TestDefault_HasMainApp(t *testing.T) {
	_, err := Default.Lookup(EntryPoint{Module: "main", Object: "app"})
	assert.NoError(t, err)
}
