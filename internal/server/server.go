// Package server is the résumé analysis HTTP application served by every
// worker under the main:app entry point.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/cvalchemist/internal/extract"
	"github.com/mesh-intelligence/cvalchemist/internal/payments"
	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// Analyzer scores and rewrites résumé text.
type Analyzer interface {
	Analyze(ctx context.Context, jobTitle, text string) (*types.Analysis, error)
	Rewrite(ctx context.Context, jobTitle, text string) (string, error)
}

// ExtractFunc pulls text out of an uploaded file.
type ExtractFunc func(path string, kind types.DocumentKind) (string, error)

// Defaults for Deps fields left zero.
const (
	DefaultMaxUploadBytes = 10 << 20
	DefaultRateLimit      = 2.0
	DefaultBurst          = 5
)

// Deps holds what the application needs. Analyzer, Checkout and Store are
// required.
type Deps struct {
	Analyzer Analyzer
	Checkout payments.Checkout
	Store    types.ResultStore
	Extract  ExtractFunc

	// AppDir holds index.html.
	AppDir         string
	WorkerID       int
	MaxUploadBytes int64
	RateLimit      float64
	Burst          int

	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// Server routes requests to the handlers.
type Server struct {
	deps    Deps
	router  *gin.Engine
	limiter *rate.Limiter
	metrics *httpMetrics
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.Extract == nil {
		deps.Extract = extract.Text
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.RateLimit <= 0 {
		deps.RateLimit = DefaultRateLimit
	}
	if deps.Burst < 1 {
		deps.Burst = DefaultBurst
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		deps:    deps,
		router:  gin.New(),
		limiter: rate.NewLimiter(rate.Limit(deps.RateLimit), deps.Burst),
		metrics: newHTTPMetrics(deps.Registry),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(deps.Logger))
	s.router.Use(s.metrics.middleware())
	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		MaxAge:          10 * time.Minute,
	}))

	s.registerRoutes()
	return s
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/result/:id", s.handleResult)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.handler()))

	llm := s.router.Group("/", rateLimit(s.limiter))
	llm.POST("/analyze", s.handleAnalyze)
	llm.POST("/rewrite", s.handleRewrite)

	s.router.POST("/create-checkout-session", s.handleCheckout)
	s.router.POST("/download-pdf", s.handleDownloadPDF)
	s.router.POST("/download-docx", s.handleDownloadDOCX)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// detail aborts with the {"detail": ...} error body.
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
