// Package output defines the outbound ports the pipeline depends on:
// the AI collaborator, image storage, notifications and transactions.
package output

import (
	"context"
	"fmt"
)

// AIGateway is the interface to the external AI collaborator. One
// implementation talks to Google AI Studio (Gemini for text, Imagen for
// images); a mock exists for tests and offline runs.
type AIGateway interface {
	// AnalyzeText analyzes journal content and returns structured
	// insights. Fails with *AIError; every error kind is retryable.
	AnalyzeText(ctx context.Context, content string) (*AnalysisResult, error)

	// GenerateImage renders an image for the given prompt.
	GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error)
}

// AnalysisResult is the structured output of text analysis.
type AnalysisResult struct {
	Summary        string             // Brief 1-2 sentence summary
	Tags           []string           // Thematic tags
	Entities       []string           // Key people, places, objects
	Emotions       map[string]float64 // Intensity scores in [0, 1]
	Interpretation string             // Detailed interpretation
	ModelVersion   string             // Model that produced the result
}

// GeneratedImage is the output of image generation.
type GeneratedImage struct {
	Data         []byte // Raw image bytes
	MimeType     string // e.g. "image/png"
	Width        int    // Pixels, 0 if unknown
	Height       int    // Pixels, 0 if unknown
	ModelVersion string // Model that produced the image
}

// SuggestFilename derives a storage filename from the image metadata.
func (g *GeneratedImage) SuggestFilename(prefix string) string {
	ext := "png"
	if g.MimeType == "image/jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s_%dx%d.%s", prefix, g.Width, g.Height, ext)
}

// AIErrorKind distinguishes collaborator failure modes. The pipeline
// treats all of them as retryable; the distinction exists for logs and
// metrics.
type AIErrorKind string

const (
	AIErrorNetwork         AIErrorKind = "network"
	AIErrorInvalidResponse AIErrorKind = "invalid_response"
	AIErrorRateLimit       AIErrorKind = "rate_limit"
)

// AIError wraps a failure of the AI collaborator.
type AIError struct {
	Kind  AIErrorKind
	Op    string // "analyze" or "generate-image"
	Cause error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ai %s failed (%s): %v", e.Op, e.Kind, e.Cause)
	}
	return fmt.Sprintf("ai %s failed (%s)", e.Op, e.Kind)
}

func (e *AIError) Unwrap() error { return e.Cause }

// NewAIError builds an AIError for the given operation and kind.
func NewAIError(kind AIErrorKind, op string, cause error) *AIError {
	return &AIError{Kind: kind, Op: op, Cause: cause}
}
