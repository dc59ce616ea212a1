package service_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	aigateway "github.com/kalinpl/dreamlog/internal/adapter/gateway/ai"
	storagegateway "github.com/kalinpl/dreamlog/internal/adapter/gateway/storage"
	"github.com/kalinpl/dreamlog/internal/application/service"
	"github.com/kalinpl/dreamlog/internal/domain/model/entry"
	"github.com/kalinpl/dreamlog/internal/domain/model/schedule"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
	sqliterepo "github.com/kalinpl/dreamlog/internal/infrastructure/persistence/sqlite"
	"github.com/kalinpl/dreamlog/internal/infrastructure/transaction"
	"github.com/kalinpl/dreamlog/internal/testutil"
)

// pipelineEnv wires the real SQLite persistence behind the services so
// tests cover the same transaction and CAS behavior production sees.
type pipelineEnv struct {
	db       *sql.DB
	entries  repository.EntryRepository
	analyses repository.AnalysisRepository
	tasks    repository.TaskRepository
	outbox   repository.OutboxRepository
	locks    repository.TaskLockRepository
	tm       *transaction.SQLiteTransactionManager

	ai    *aigateway.MockAIGateway
	s3    *storagegateway.MockS3Client
	store *storagegateway.S3ImageStorage
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	s3 := storagegateway.NewMockS3Client()
	return &pipelineEnv{
		db:       db,
		entries:  sqliterepo.NewEntryRepository(db),
		analyses: sqliterepo.NewAnalysisRepository(db),
		tasks:    sqliterepo.NewTaskRepository(db),
		outbox:   sqliterepo.NewOutboxRepository(db),
		locks:    sqliterepo.NewTaskLockRepository(db),
		tm:       transaction.NewSQLiteTransactionManager(db),
		ai:       aigateway.NewMockAIGateway(),
		s3:       s3,
		store: storagegateway.NewS3ImageStorageWithClient(s3, s3, storagegateway.S3Config{
			Bucket: "test-bucket",
		}),
	}
}

func (env *pipelineEnv) analyzeExecutor() *service.AnalyzeExecutor {
	return service.NewAnalyzeExecutor(env.entries, env.analyses, env.outbox, env.tm, env.ai, 0, nil)
}

func (env *pipelineEnv) imageExecutor() *service.GenerateImageExecutor {
	return service.NewGenerateImageExecutor(env.entries, env.analyses, env.outbox, env.tm, env.ai, env.store, 0, nil)
}

// createEntry persists a fresh entry in state CREATED without the
// outbox event, for tests that drive executors directly.
func (env *pipelineEnv) createEntry(t *testing.T) *entry.Entry {
	t.Helper()
	e, err := entry.NewEntry(uuid.New(), time.Now(), "The bridge", "I crossed an endless glass bridge.")
	require.NoError(t, err)
	require.NoError(t, env.entries.Create(context.Background(), e))
	return e
}

func (env *pipelineEnv) taskFor(t *testing.T, kind schedule.TaskKind, entryID uuid.UUID) *schedule.Task {
	t.Helper()
	task, err := schedule.NewTask(kind, entryID, time.Now().UTC())
	require.NoError(t, err)
	return task
}

// mustState asserts the stored processing state of an entry.
func (env *pipelineEnv) mustState(t *testing.T, id uuid.UUID, want entry.ProcessingState) {
	t.Helper()
	e, err := env.entries.Find(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, want, e.State())
}

// eventKinds returns the kinds of all undispatched outbox events.
func (env *pipelineEnv) eventKinds(t *testing.T) []schedule.EventKind {
	t.Helper()
	events, err := env.outbox.FindUndispatched(context.Background(), 100)
	require.NoError(t, err)
	kinds := make([]schedule.EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	entryID uuid.UUID
	state   entry.ProcessingState
	message string
}

func (n *recordingNotifier) Notify(ctx context.Context, entryID uuid.UUID, state entry.ProcessingState, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{entryID: entryID, state: state, message: message})
	return nil
}

func (n *recordingNotifier) Calls() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}
