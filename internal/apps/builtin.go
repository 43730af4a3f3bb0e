package apps

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/cvalchemist/internal/config"
	"github.com/mesh-intelligence/cvalchemist/internal/llm"
	"github.com/mesh-intelligence/cvalchemist/internal/paths"
	"github.com/mesh-intelligence/cvalchemist/internal/payments"
	"github.com/mesh-intelligence/cvalchemist/internal/server"
	"github.com/mesh-intelligence/cvalchemist/internal/store"
	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

func init() {
	Default.MustRegister(DefaultEntryPoint, NewResumeApp)
}

// newModel is replaced in tests to keep them off the network.
var newModel = func(ctx context.Context, opts llm.Options, logger *zap.Logger) (llm.Model, error) {
	return llm.NewGenAIModel(ctx, opts, logger)
}

// NewResumeApp builds the résumé analysis service for one worker. A model
// that cannot be initialized is logged and the worker still serves.
func NewResumeApp(ctx context.Context, env Env) (*App, error) {
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := env.Settings
	if settings == nil {
		s, err := config.FromEnv()
		if err != nil {
			return nil, err
		}
		settings = s
	}

	storeCfg := settings.Store
	if storeCfg.Backend == types.BackendSQLite {
		dir, err := paths.ResolveDataDir("", storeCfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		storeCfg.DataDir = dir
	}
	results, err := store.Open(ctx, storeCfg)
	if err != nil {
		return nil, err
	}
	if storeCfg.Backend == types.BackendMemory && env.Workers > 1 {
		logger.Warn("memory result store is per worker; results are only visible to the worker that produced them",
			zap.Int("workers", env.Workers))
	}

	var model llm.Model
	m, err := newModel(ctx, llm.Options{
		Model:    settings.LLM.Model,
		Project:  settings.LLM.Project,
		Location: settings.LLM.Location,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize vertex ai", zap.Error(err))
		model = llm.Unavailable{Err: err}
	} else {
		model = m
	}

	if settings.Stripe.APIKey == "" {
		logger.Warn("STRIPE_API_KEY environment variable not set")
	}

	appDir, err := paths.ResolveAppDir("", settings.App.Dir)
	if err != nil {
		results.Close()
		return nil, fmt.Errorf("resolve app dir: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(server.Deps{
		Analyzer:       llm.NewAnalyzer(model),
		Checkout:       payments.NewStripeCheckout(settings.Stripe.APIKey),
		Store:          results,
		AppDir:         appDir,
		WorkerID:       env.WorkerID,
		MaxUploadBytes: int64(settings.App.MaxUploadMB) << 20,
		RateLimit:      settings.LLM.RateLimit,
		Burst:          settings.LLM.Burst,
		Logger:         logger,
	})

	return &App{Handler: srv, Close: results.Close}, nil
}
