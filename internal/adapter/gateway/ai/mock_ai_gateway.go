package ai

import (
	"context"
	"strings"
	"sync"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
)

// MockAIGateway is a deterministic in-memory AIGateway for tests and
// offline runs. Errors can be queued per operation to simulate
// collaborator failures.
type MockAIGateway struct {
	mu sync.Mutex

	AnalyzeCalls  []string
	GenerateCalls []string

	analyzeErrs  []error
	generateErrs []error
}

// NewMockAIGateway creates an empty mock.
func NewMockAIGateway() *MockAIGateway {
	return &MockAIGateway{}
}

// FailAnalyzeWith queues errors returned by successive AnalyzeText calls.
func (m *MockAIGateway) FailAnalyzeWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyzeErrs = append(m.analyzeErrs, errs...)
}

// FailGenerateWith queues errors returned by successive GenerateImage calls.
func (m *MockAIGateway) FailGenerateWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateErrs = append(m.generateErrs, errs...)
}

func (m *MockAIGateway) AnalyzeText(ctx context.Context, content string) (*output.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AnalyzeCalls = append(m.AnalyzeCalls, content)
	if len(m.analyzeErrs) > 0 {
		err := m.analyzeErrs[0]
		m.analyzeErrs = m.analyzeErrs[1:]
		return nil, err
	}

	summary := content
	if len(summary) > 60 {
		summary = summary[:60]
	}
	return &output.AnalysisResult{
		Summary:        "A dream about " + strings.ToLower(summary),
		Tags:           []string{"mock", "dream"},
		Entities:       []string{"dreamer"},
		Emotions:       map[string]float64{"wonder": 0.8, "calm": 0.3},
		Interpretation: "Mock interpretation of the dream content.",
		ModelVersion:   "mock-analyzer-1",
	}, nil
}

// tinyPNG is a valid 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func (m *MockAIGateway) GenerateImage(ctx context.Context, prompt string) (*output.GeneratedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateCalls = append(m.GenerateCalls, prompt)
	if len(m.generateErrs) > 0 {
		err := m.generateErrs[0]
		m.generateErrs = m.generateErrs[1:]
		return nil, err
	}

	return &output.GeneratedImage{
		Data:         append([]byte(nil), tinyPNG...),
		MimeType:     "image/png",
		Width:        1,
		Height:       1,
		ModelVersion: "mock-imagen-1",
	}, nil
}
