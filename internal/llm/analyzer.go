package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// Prompt limits.
const (
	// MaxPromptChars bounds how much résumé text reaches the model.
	MaxPromptChars = 8000
	// PreviewChars is the raw_text_preview length requested from the model.
	PreviewChars = 2000
	// DefaultRewriteTitle fills in a missing job title for rewrites.
	DefaultRewriteTitle = "the user-specified position"
)

// ErrMalformedAnalysis is returned when the model's reply is not the
// expected JSON object.
var ErrMalformedAnalysis = errors.New("malformed analysis response")

const analysisPrompt = `Analyze the following resume for the position of '%s'.
Provide a score and feedback based on its suitability for that specific role.
Resume Text: 
%s

Return your response as a JSON object with three keys: "score" (an integer between 0 and 100), "feedback" (a list of short, actionable feedback strings), and "raw_text_preview" (the first 2000 characters of the original text).
Example: {"score": 85, "feedback": ["Great use of action verbs.", "Consider adding a summary section."], "raw_text_preview": "..."}
`

const rewritePrompt = "Rewrite this resume to be highly optimized for the position of '%s'. Return text only:\n%s"

// Analyzer builds prompts and interprets the model's replies.
type Analyzer struct {
	model Model
}

// NewAnalyzer wraps m.
func NewAnalyzer(m Model) *Analyzer {
	return &Analyzer{model: m}
}

// Analyze scores text for jobTitle.
func (a *Analyzer) Analyze(ctx context.Context, jobTitle, text string) (*types.Analysis, error) {
	reply, err := a.model.Generate(ctx, AnalysisPrompt(jobTitle, text))
	if err != nil {
		return nil, err
	}
	analysis, err := ParseAnalysis(reply)
	if err != nil {
		return nil, err
	}
	if analysis.RawTextPreview == "" {
		analysis.RawTextPreview = truncate(text, PreviewChars)
	}
	return analysis, nil
}

// Rewrite asks the model for a version of text tailored to jobTitle.
func (a *Analyzer) Rewrite(ctx context.Context, jobTitle, text string) (string, error) {
	reply, err := a.model.Generate(ctx, RewritePrompt(jobTitle, text))
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(reply, "```", ""), nil
}

// AnalysisPrompt returns the scoring prompt.
func AnalysisPrompt(jobTitle, text string) string {
	return fmt.Sprintf(analysisPrompt, jobTitle, truncate(text, MaxPromptChars))
}

// RewritePrompt returns the rewrite prompt.
func RewritePrompt(jobTitle, text string) string {
	return fmt.Sprintf(rewritePrompt, jobTitle, truncate(text, MaxPromptChars))
}

// CleanJSON strips surrounding whitespace and markdown code fences.
func CleanJSON(reply string) string {
	s := strings.TrimSpace(reply)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseAnalysis decodes a model reply. Fractional scores are rounded and
// every score is clamped to 0..100.
func ParseAnalysis(reply string) (*types.Analysis, error) {
	var raw struct {
		Score          *json.Number `json:"score"`
		Feedback       []string     `json:"feedback"`
		RawTextPreview string       `json:"raw_text_preview"`
	}
	dec := json.NewDecoder(strings.NewReader(CleanJSON(reply)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}
	if raw.Score == nil {
		return nil, fmt.Errorf("%w: missing score", ErrMalformedAnalysis)
	}
	score, err := raw.Score.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: score %q", ErrMalformedAnalysis, raw.Score.String())
	}

	a := &types.Analysis{
		Score:          int(math.Round(math.Max(math.Min(score, types.MaxScore), types.MinScore))),
		Feedback:       raw.Feedback,
		RawTextPreview: raw.RawTextPreview,
	}
	if a.Feedback == nil {
		a.Feedback = []string{}
	}
	a.ClampScore()
	return a, nil
}

// truncate returns at most n characters of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
