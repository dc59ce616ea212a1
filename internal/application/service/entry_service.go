package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
	"github.com/kalinpl/dreamlog/internal/domain/model/analysis"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
)

// ErrRateLimited is returned when a user exceeds the creation budget.
var ErrRateLimited = errors.New("entry creation rate limit exceeded")

// CreateEntryInput carries the user-supplied fields of a new entry.
type CreateEntryInput struct {
	UserID         uuid.UUID
	Date           time.Time
	Title          string
	Content        string
	MoodInDream    string
	MoodAfterDream string
	Vividness      int
	Lucid          bool
	Tags           []string
}

// EntryService is the upstream boundary of the pipeline: it persists a
// new entry together with its ENTRY_CREATED outbox event in one
// transaction, which is what later lets the dispatcher schedule the
// analyze task against durable facts only.
type EntryService struct {
	entries  repository.EntryRepository
	analyses repository.AnalysisRepository
	outbox   repository.OutboxRepository
	tx       output.TransactionManager
	limiter  output.CreationLimiter
	log      Logger
}

// NewEntryService wires an entry service. limiter may be nil to disable
// rate limiting; log may be nil.
func NewEntryService(
	entries repository.EntryRepository,
	analyses repository.AnalysisRepository,
	outbox repository.OutboxRepository,
	tx output.TransactionManager,
	limiter output.CreationLimiter,
	log Logger,
) *EntryService {
	if log == nil {
		log = NopLogger{}
	}
	return &EntryService{
		entries:  entries,
		analyses: analyses,
		outbox:   outbox,
		tx:       tx,
		limiter:  limiter,
		log:      log,
	}
}

// CreateEntry creates an entry in state CREATED and emits the
// ENTRY_CREATED event atomically with it.
func (s *EntryService) CreateEntry(ctx context.Context, in CreateEntryInput) (*entry.Entry, error) {
	if s.limiter != nil && !s.limiter.Allow(in.UserID) {
		s.log.Warn("entry creation rate limit exceeded: user=%s", in.UserID)
		return nil, ErrRateLimited
	}

	e, err := entry.NewEntry(in.UserID, in.Date, in.Title, in.Content)
	if err != nil {
		return nil, fmt.Errorf("new entry: %w", err)
	}
	e.SetMoods(in.MoodInDream, in.MoodAfterDream)
	if err := e.SetVividness(in.Vividness); err != nil {
		return nil, err
	}
	e.SetLucid(in.Lucid)
	e.SetTags(in.Tags)

	event, err := schedule.NewEvent(schedule.EventEntryCreated, e.ID(), nil)
	if err != nil {
		return nil, fmt.Errorf("new event: %w", err)
	}

	err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		if err := s.entries.Create(txCtx, e); err != nil {
			return fmt.Errorf("create entry: %w", err)
		}
		if err := s.outbox.Append(txCtx, event); err != nil {
			return fmt.Errorf("append outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("entry created: id=%s user=%s", e.ID(), e.UserID())
	return e, nil
}

// GetEntry loads an entry with its processing record.
func (s *EntryService) GetEntry(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	return s.entries.Find(ctx, id)
}

// GetAnalysis loads the analysis artifact for an entry.
func (s *EntryService) GetAnalysis(ctx context.Context, entryID uuid.UUID) (*analysis.Analysis, error) {
	return s.analyses.FindByEntryID(ctx, entryID)
}
