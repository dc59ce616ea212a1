package entry

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const maxTitleRunes = 50

// Entry is the journal entry aggregate. It carries both the user-facing
// fields and the processing record the AI pipeline mutates: state,
// attempt count, failure reason and the generated image reference.
type Entry struct {
	id      uuid.UUID
	userID  uuid.UUID
	date    time.Time
	title   string
	content string

	moodInDream    string
	moodAfterDream string
	vividness      int
	lucid          bool
	tags           []string

	state         ProcessingState
	attemptCount  int
	failureReason string

	imageStorageKey  string
	imageURL         string
	imageGeneratedAt *time.Time

	createdAt time.Time
	updatedAt time.Time
}

// NewEntry creates an entry in state CREATED. When title is blank it is
// derived from the content.
func NewEntry(userID uuid.UUID, date time.Time, title, content string) (*Entry, error) {
	if userID == uuid.Nil {
		return nil, errors.New("user id cannot be empty")
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("content cannot be empty")
	}
	if strings.TrimSpace(title) == "" {
		title = TitleFromContent(content)
	}

	now := time.Now().UTC()
	return &Entry{
		id:        uuid.New(),
		userID:    userID,
		date:      date,
		title:     title,
		content:   content,
		tags:      []string{},
		state:     StateCreated,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds an entry from stored data without validation.
func Reconstruct(
	id uuid.UUID,
	userID uuid.UUID,
	date time.Time,
	title string,
	content string,
	moodInDream string,
	moodAfterDream string,
	vividness int,
	lucid bool,
	tags []string,
	state ProcessingState,
	attemptCount int,
	failureReason string,
	imageStorageKey string,
	imageURL string,
	imageGeneratedAt *time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) *Entry {
	if tags == nil {
		tags = []string{}
	}
	return &Entry{
		id:               id,
		userID:           userID,
		date:             date,
		title:            title,
		content:          content,
		moodInDream:      moodInDream,
		moodAfterDream:   moodAfterDream,
		vividness:        vividness,
		lucid:            lucid,
		tags:             tags,
		state:            state,
		attemptCount:     attemptCount,
		failureReason:    failureReason,
		imageStorageKey:  imageStorageKey,
		imageURL:         imageURL,
		imageGeneratedAt: imageGeneratedAt,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// TitleFromContent derives a short title from entry content. The content
// is NFC-normalized, whitespace-collapsed and truncated on a rune
// boundary.
func TitleFromContent(content string) string {
	normalized := norm.NFC.String(content)
	fields := strings.FieldsFunc(normalized, unicode.IsSpace)
	joined := strings.Join(fields, " ")

	runes := []rune(joined)
	if len(runes) <= maxTitleRunes {
		return joined
	}
	return strings.TrimSpace(string(runes[:maxTitleRunes])) + "..."
}

func (e *Entry) ID() uuid.UUID           { return e.id }
func (e *Entry) UserID() uuid.UUID       { return e.userID }
func (e *Entry) Date() time.Time         { return e.date }
func (e *Entry) Title() string           { return e.title }
func (e *Entry) Content() string         { return e.content }
func (e *Entry) MoodInDream() string     { return e.moodInDream }
func (e *Entry) MoodAfterDream() string  { return e.moodAfterDream }
func (e *Entry) Vividness() int          { return e.vividness }
func (e *Entry) Lucid() bool             { return e.lucid }
func (e *Entry) Tags() []string          { return e.tags }
func (e *Entry) State() ProcessingState  { return e.state }
func (e *Entry) AttemptCount() int       { return e.attemptCount }
func (e *Entry) FailureReason() string   { return e.failureReason }
func (e *Entry) ImageStorageKey() string { return e.imageStorageKey }
func (e *Entry) ImageURL() string        { return e.imageURL }
func (e *Entry) CreatedAt() time.Time    { return e.createdAt }
func (e *Entry) UpdatedAt() time.Time    { return e.updatedAt }

// ImageGeneratedAt returns when the image was generated, nil if not yet.
func (e *Entry) ImageGeneratedAt() *time.Time { return e.imageGeneratedAt }

// HasImage reports whether the generated image reference is present.
// Its presence is the idempotency signal for the image stage.
func (e *Entry) HasImage() bool {
	return e.imageStorageKey != ""
}

// SetMoods records the user's mood during and after the dream.
func (e *Entry) SetMoods(inDream, afterDream string) {
	e.moodInDream = inDream
	e.moodAfterDream = afterDream
	e.touch()
}

// SetVividness records vividness on a 0-5 scale.
func (e *Entry) SetVividness(v int) error {
	if v < 0 || v > 5 {
		return errors.New("vividness must be between 0 and 5")
	}
	e.vividness = v
	e.touch()
	return nil
}

// SetLucid marks the entry as a lucid dream.
func (e *Entry) SetLucid(lucid bool) {
	e.lucid = lucid
	e.touch()
}

// SetTags replaces the user-assigned tags.
func (e *Entry) SetTags(tags []string) {
	if tags == nil {
		tags = []string{}
	}
	e.tags = tags
	e.touch()
}

// AdvanceTo moves the processing state forward. It rejects backward
// moves and transitions out of a terminal state.
func (e *Entry) AdvanceTo(next ProcessingState) error {
	if !e.state.CanTransitionTo(next) {
		return errors.New("illegal state transition: " + e.state.String() + " -> " + next.String())
	}
	e.state = next
	e.touch()
	return nil
}

// MarkFailed diverts the entry to FAILED and records the reason.
// Calling it on an already-FAILED entry is a no-op.
func (e *Entry) MarkFailed(reason string) error {
	if e.state == StateFailed {
		return nil
	}
	if e.state == StateCompleted {
		return errors.New("cannot fail a completed entry")
	}
	e.state = StateFailed
	e.failureReason = reason
	e.touch()
	return nil
}

// IncrementAttempt bumps the attempt counter for the current stage.
func (e *Entry) IncrementAttempt() {
	e.attemptCount++
	e.touch()
}

// ResetAttempts zeroes the attempt counter after a successful stage.
func (e *Entry) ResetAttempts() {
	e.attemptCount = 0
	e.touch()
}

// SetImage records the stored image reference.
func (e *Entry) SetImage(storageKey, url string, generatedAt time.Time) error {
	if storageKey == "" {
		return errors.New("storage key cannot be empty")
	}
	e.imageStorageKey = storageKey
	e.imageURL = url
	at := generatedAt.UTC()
	e.imageGeneratedAt = &at
	e.touch()
	return nil
}

func (e *Entry) touch() {
	e.updatedAt = time.Now().UTC()
}
