// Package analysis holds the text-analysis artifact produced by the
// first pipeline stage. Its existence for an entry is the idempotency
// signal for that stage.
package analysis

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Analysis is the durable output of the text-analysis stage, keyed 1:1
// by entry ID.
type Analysis struct {
	entryID        uuid.UUID
	summary        string
	tags           []string
	entities       []string
	emotions       map[string]float64
	interpretation string
	modelVersion   string
	createdAt      time.Time
}

// New creates an analysis artifact for an entry.
func New(
	entryID uuid.UUID,
	summary string,
	tags []string,
	entities []string,
	emotions map[string]float64,
	interpretation string,
	modelVersion string,
) (*Analysis, error) {
	if entryID == uuid.Nil {
		return nil, errors.New("entry id cannot be empty")
	}
	if summary == "" {
		return nil, errors.New("summary cannot be empty")
	}
	if tags == nil {
		tags = []string{}
	}
	if entities == nil {
		entities = []string{}
	}
	if emotions == nil {
		emotions = map[string]float64{}
	}
	return &Analysis{
		entryID:        entryID,
		summary:        summary,
		tags:           tags,
		entities:       entities,
		emotions:       emotions,
		interpretation: interpretation,
		modelVersion:   modelVersion,
		createdAt:      time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds an analysis from stored data.
func Reconstruct(
	entryID uuid.UUID,
	summary string,
	tags []string,
	entities []string,
	emotions map[string]float64,
	interpretation string,
	modelVersion string,
	createdAt time.Time,
) *Analysis {
	if tags == nil {
		tags = []string{}
	}
	if entities == nil {
		entities = []string{}
	}
	if emotions == nil {
		emotions = map[string]float64{}
	}
	return &Analysis{
		entryID:        entryID,
		summary:        summary,
		tags:           tags,
		entities:       entities,
		emotions:       emotions,
		interpretation: interpretation,
		modelVersion:   modelVersion,
		createdAt:      createdAt,
	}
}

func (a *Analysis) EntryID() uuid.UUID           { return a.entryID }
func (a *Analysis) Summary() string              { return a.summary }
func (a *Analysis) Tags() []string               { return a.tags }
func (a *Analysis) Entities() []string           { return a.entities }
func (a *Analysis) Emotions() map[string]float64 { return a.emotions }
func (a *Analysis) Interpretation() string       { return a.interpretation }
func (a *Analysis) ModelVersion() string         { return a.modelVersion }
func (a *Analysis) CreatedAt() time.Time         { return a.createdAt }

// PrimaryEmotion returns the emotion with the highest intensity score,
// "neutral" when no scores are present. Used to set the mood of the
// generated image.
func (a *Analysis) PrimaryEmotion() string {
	primary := "neutral"
	best := -1.0
	for emotion, score := range a.emotions {
		if score > best || (score == best && emotion < primary) {
			primary = emotion
			best = score
		}
	}
	if best < 0 {
		return "neutral"
	}
	return primary
}
