// Package llm talks to the Gemini model that scores and rewrites résumés.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Model defaults.
const (
	DefaultModel    = "gemini-2.0-flash-lite-001"
	DefaultLocation = "us-central1"
	// FallbackProject is used when neither config nor credentials name a project.
	FallbackProject = "cv-alchemist-482203"
)

// LLM errors.
var (
	ErrModelUnavailable = errors.New("model is not initialized")
	ErrEmptyResponse    = errors.New("model returned an empty response")
)

// Model generates text for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options selects the Vertex AI model.
type Options struct {
	Model    string
	Project  string
	Location string
}

// GenAIModel is a Gemini model on the Vertex AI backend.
type GenAIModel struct {
	client *genai.Client
	model  string
}

// NewGenAIModel creates a Vertex AI client for opts.Project. An empty
// project is discovered with DiscoverProject.
func NewGenAIModel(ctx context.Context, opts Options, logger *zap.Logger) (*GenAIModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Location == "" {
		opts.Location = DefaultLocation
	}
	project, source := DiscoverProject(ctx, opts.Project)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: opts.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	logger.Info("vertex ai initialized",
		zap.String("model", opts.Model),
		zap.String("project", project),
		zap.String("project_source", source),
		zap.String("location", opts.Location))
	return &GenAIModel{client: client, model: opts.Model}, nil
}

// Generate sends prompt as a single user turn and returns the reply text.
func (m *GenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Name returns the model name.
func (m *GenAIModel) Name() string {
	return fmt.Sprintf("genai:%s", m.model)
}

// Unavailable is a Model that always fails. Workers install it when the
// real model cannot be created so the rest of the application still serves.
type Unavailable struct {
	Err error
}

// Generate returns ErrModelUnavailable wrapping the initialization error.
func (u Unavailable) Generate(context.Context, string) (string, error) {
	if u.Err == nil {
		return "", ErrModelUnavailable
	}
	return "", fmt.Errorf("%w: %v", ErrModelUnavailable, u.Err)
}
