// Package ai implements the AIGateway port against Google AI Studio:
// Gemini for text analysis, Imagen for image generation.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
)

// Config holds the Google AI Studio connection settings.
type Config struct {
	APIKey     string
	BaseURL    string // e.g. "https://generativelanguage.googleapis.com/v1beta"
	TextModel  string // e.g. "gemini-1.5-flash-latest"
	ImageModel string // e.g. "imagen-3.0-generate-001"
	Timeout    time.Duration
}

// GoogleAIGateway implements output.AIGateway over the Google AI Studio
// REST API.
type GoogleAIGateway struct {
	client *http.Client
	cfg    Config
}

// NewGoogleAIGateway creates a gateway. A zero Timeout defaults to 60s;
// the scheduler's per-attempt context bounds the call as well.
func NewGoogleAIGateway(cfg Config) *GoogleAIGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GoogleAIGateway{
		client: &http.Client{Timeout: timeout},
		cfg:    cfg,
	}
}

// AnalyzeText asks Gemini for structured insights on journal content.
func (g *GoogleAIGateway) AnalyzeText(ctx context.Context, content string) (*output.AnalysisResult, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.cfg.BaseURL, g.cfg.TextModel, g.cfg.APIKey)
	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": analysisPrompt(content)}}},
		},
	}

	raw, err := g.post(ctx, "analyze", url, body)
	if err != nil {
		return nil, err
	}
	return parseAnalysisResponse(raw, g.cfg.TextModel)
}

// GenerateImage asks Imagen to render the prompt.
func (g *GoogleAIGateway) GenerateImage(ctx context.Context, prompt string) (*output.GeneratedImage, error) {
	url := fmt.Sprintf("%s/models/%s:predict?key=%s", g.cfg.BaseURL, g.cfg.ImageModel, g.cfg.APIKey)
	body := map[string]interface{}{
		"instances":  []map[string]string{{"prompt": prompt}},
		"parameters": map[string]int{"sampleCount": 1},
	}

	raw, err := g.post(ctx, "generate-image", url, body)
	if err != nil {
		return nil, err
	}
	return parseImageResponse(raw, g.cfg.ImageModel)
}

func (g *GoogleAIGateway) post(ctx context.Context, op, url string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, output.NewAIError(output.AIErrorInvalidResponse, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, output.NewAIError(output.AIErrorNetwork, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, output.NewAIError(output.AIErrorNetwork, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, output.NewAIError(output.AIErrorNetwork, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, output.NewAIError(output.AIErrorRateLimit, op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, output.NewAIError(output.AIErrorInvalidResponse, op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw)))
	}
	return raw, nil
}

// analysisPrompt wraps the journal content into the analyst prompt. The
// model must answer with bare JSON matching the analysis schema.
func analysisPrompt(content string) string {
	return fmt.Sprintf(`You are an expert dream analyst specializing in symbolism, emotions, and psychological interpretation.

**Dream Description:**
%s

**Task:** Analyze this dream and return ONLY a valid JSON response (no markdown, no extra text) with this exact structure:

{
  "summary": "Brief 1-2 sentence summary of the dream",
  "tags": ["tag1", "tag2", "tag3"],
  "entities": ["entity1", "entity2"],
  "emotions": {"joy": 0.5, "fear": 0.2},
  "interpretation": "Detailed psychological interpretation"
}

Emotion scores are between 0.0 and 1.0.`, content)
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type analysisPayload struct {
	Summary        string             `json:"summary"`
	Tags           []string           `json:"tags"`
	Entities       []string           `json:"entities"`
	Emotions       map[string]float64 `json:"emotions"`
	Interpretation string             `json:"interpretation"`
}

func parseAnalysisResponse(raw []byte, modelVersion string) (*output.AnalysisResult, error) {
	var resp generateContentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, output.NewAIError(output.AIErrorInvalidResponse, "analyze", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, output.NewAIError(output.AIErrorInvalidResponse, "analyze", fmt.Errorf("no candidates in response"))
	}

	text := stripCodeFences(resp.Candidates[0].Content.Parts[0].Text)
	var payload analysisPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, output.NewAIError(output.AIErrorInvalidResponse, "analyze", fmt.Errorf("model returned non-JSON analysis: %w", err))
	}
	if payload.Summary == "" {
		return nil, output.NewAIError(output.AIErrorInvalidResponse, "analyze", fmt.Errorf("analysis missing summary"))
	}

	return &output.AnalysisResult{
		Summary:        payload.Summary,
		Tags:           payload.Tags,
		Entities:       payload.Entities,
		Emotions:       payload.Emotions,
		Interpretation: payload.Interpretation,
		ModelVersion:   modelVersion,
	}, nil
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

func parseImageResponse(raw []byte, modelVersion string) (*output.GeneratedImage, error) {
	var resp predictResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, output.NewAIError(output.AIErrorInvalidResponse, "generate-image", err)
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return nil, output.NewAIError(output.AIErrorInvalidResponse, "generate-image", fmt.Errorf("no predictions in response"))
	}

	data, err := base64.StdEncoding.DecodeString(resp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, output.NewAIError(output.AIErrorInvalidResponse, "generate-image", fmt.Errorf("decode image bytes: %w", err))
	}

	mimeType := resp.Predictions[0].MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	img := &output.GeneratedImage{
		Data:         data,
		MimeType:     mimeType,
		ModelVersion: modelVersion,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}
	return img, nil
}

// stripCodeFences removes a surrounding ```json fence when the model
// ignores the "no markdown" instruction.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(raw []byte) string {
	const max = 256
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
