// Package di wires the application together. Manual dependency
// injection: the container owns the database handle, repositories,
// gateways and services, constructed in dependency order.
package di

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	aigateway "github.com/kalinpl/dreamlog/internal/adapter/gateway/ai"
	"github.com/kalinpl/dreamlog/internal/adapter/gateway/notification"
	storagegateway "github.com/kalinpl/dreamlog/internal/adapter/gateway/storage"
	appconfig "github.com/kalinpl/dreamlog/internal/app/config"
	"github.com/kalinpl/dreamlog/internal/application/port/output"
	"github.com/kalinpl/dreamlog/internal/application/service"
	"github.com/kalinpl/dreamlog/internal/domain/repository"
	"github.com/kalinpl/dreamlog/internal/infrastructure/metrics"
	sqliterepo "github.com/kalinpl/dreamlog/internal/infrastructure/persistence/sqlite"
	"github.com/kalinpl/dreamlog/internal/infrastructure/transaction"
)

// Container holds all wired dependencies.
type Container struct {
	// Infrastructure - database
	db *sql.DB

	// Infrastructure - repositories
	entryRepo    repository.EntryRepository
	analysisRepo repository.AnalysisRepository
	taskRepo     repository.TaskRepository
	outboxRepo   repository.OutboxRepository
	lockRepo     repository.TaskLockRepository

	// Infrastructure - transaction manager
	txManager output.TransactionManager

	// Infrastructure - observability
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Adapters - gateways
	aiGateway      output.AIGateway
	storageGateway output.ImageStorageGateway
	notifier       output.NotificationPort
	natsConn       *nats.Conn

	// Application - services
	entryService *service.EntryService
	scheduler    *service.Scheduler
	dispatcher   *service.Dispatcher

	cfg appconfig.Config
	log service.Logger
}

// Options tweak container construction beyond what configuration
// carries. Used by tests and offline commands.
type Options struct {
	// MockAI replaces the Google AI gateway with the deterministic mock.
	MockAI bool
}

// NewContainer builds the full dependency graph from configuration.
func NewContainer(cfg appconfig.Config, log service.Logger, opts Options) (*Container, error) {
	if log == nil {
		log = service.NopLogger{}
	}
	c := &Container{cfg: cfg, log: log}

	if err := c.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("initialize infrastructure: %w", err)
	}
	if err := c.initGateways(opts); err != nil {
		c.db.Close()
		return nil, fmt.Errorf("initialize gateways: %w", err)
	}
	c.initApplication()
	return c, nil
}

func (c *Container) initInfrastructure() error {
	dbPath := c.cfg.DBPath()
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	c.db = db

	if err := sqliterepo.NewMigrator(db).Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	c.entryRepo = sqliterepo.NewEntryRepository(db)
	c.analysisRepo = sqliterepo.NewAnalysisRepository(db)
	c.taskRepo = sqliterepo.NewTaskRepository(db)
	c.outboxRepo = sqliterepo.NewOutboxRepository(db)
	c.lockRepo = sqliterepo.NewTaskLockRepository(db)

	c.txManager = transaction.NewSQLiteTransactionManager(db)

	c.registry = prometheus.NewRegistry()
	c.metrics = metrics.New(c.registry)

	return nil
}

func (c *Container) initGateways(opts Options) error {
	// AI collaborator
	if opts.MockAI || c.cfg.AIAPIKey() == "" {
		c.aiGateway = aigateway.NewMockAIGateway()
	} else {
		c.aiGateway = aigateway.NewGoogleAIGateway(aigateway.Config{
			APIKey:     c.cfg.AIAPIKey(),
			BaseURL:    c.cfg.AIBaseURL(),
			TextModel:  c.cfg.AITextModel(),
			ImageModel: c.cfg.AIImageModel(),
			Timeout:    c.cfg.AITimeout(),
		})
	}

	// Image storage
	switch c.cfg.StorageBackend() {
	case "s3":
		if c.cfg.S3Bucket() == "" {
			return fmt.Errorf("S3 bucket name is required for s3 storage")
		}
		gw, err := storagegateway.NewS3ImageStorage(storagegateway.S3Config{
			Bucket:    c.cfg.S3Bucket(),
			Prefix:    c.cfg.S3Prefix(),
			Region:    c.cfg.S3Region(),
			Endpoint:  c.cfg.S3Endpoint(),
			URLExpiry: c.cfg.URLExpiry(),
		})
		if err != nil {
			return fmt.Errorf("create S3 image storage: %w", err)
		}
		c.storageGateway = gw

	case "local", "":
		dir := c.cfg.LocalStorageDir()
		if dir == "" {
			dir = filepath.Join(filepath.Dir(c.cfg.DBPath()), "images")
		}
		c.storageGateway = storagegateway.NewLocalImageStorage(afero.NewOsFs(), dir)

	default:
		return fmt.Errorf("unknown storage backend: %s", c.cfg.StorageBackend())
	}

	// Notifications
	if url := c.cfg.NATSURL(); url != "" {
		conn, err := nats.Connect(url, nats.Name("dreamlog"))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		c.natsConn = conn
		c.notifier = notification.NewNATSNotifier(conn, c.cfg.NATSSubjectPrefix())
	} else {
		c.notifier = notification.NewLogNotifier(c.log)
	}

	return nil
}

func (c *Container) initApplication() {
	var limiter output.CreationLimiter
	if perHour := c.cfg.EntriesPerHour(); perHour > 0 {
		limiter = service.NewTokenBucketLimiter(perHour, time.Hour)
	}

	c.entryService = service.NewEntryService(
		c.entryRepo, c.analysisRepo, c.outboxRepo, c.txManager, limiter, c.log)

	analyze := service.NewAnalyzeExecutor(
		c.entryRepo, c.analysisRepo, c.outboxRepo, c.txManager, c.aiGateway,
		c.cfg.MaxAttempts(), c.log)
	generate := service.NewGenerateImageExecutor(
		c.entryRepo, c.analysisRepo, c.outboxRepo, c.txManager, c.aiGateway,
		c.storageGateway, c.cfg.MaxAttempts(), c.log)

	c.scheduler = service.NewScheduler(
		c.taskRepo, c.lockRepo,
		[]service.StageExecutor{analyze, generate},
		c.metrics,
		service.SchedulerConfig{
			PollInterval:   c.cfg.SchedulerPollInterval(),
			RetryDelay:     c.cfg.RetryDelay(),
			WorkerCount:    c.cfg.WorkerCount(),
			AttemptTimeout: c.cfg.AttemptTimeout(),
			ClaimTTL:       c.cfg.ClaimTTL(),
			BatchSize:      c.cfg.SchedulerBatchSize(),
		},
		c.log)

	c.dispatcher = service.NewDispatcher(
		c.outboxRepo, c.taskRepo, c.txManager, c.notifier, c.metrics,
		service.DispatcherConfig{
			PollInterval: c.cfg.DispatcherPollInterval(),
			BatchSize:    c.cfg.DispatcherBatchSize(),
		},
		c.log)
}

// EntryService returns the entry application service.
func (c *Container) EntryService() *service.EntryService { return c.entryService }

// Scheduler returns the durable task scheduler.
func (c *Container) Scheduler() *service.Scheduler { return c.scheduler }

// Dispatcher returns the outbox event dispatcher.
func (c *Container) Dispatcher() *service.Dispatcher { return c.dispatcher }

// EntryRepository returns the entry repository.
func (c *Container) EntryRepository() repository.EntryRepository { return c.entryRepo }

// AnalysisRepository returns the analysis repository.
func (c *Container) AnalysisRepository() repository.AnalysisRepository { return c.analysisRepo }

// TaskRepository returns the scheduled-task repository.
func (c *Container) TaskRepository() repository.TaskRepository { return c.taskRepo }

// Registry returns the Prometheus registry for the metrics endpoint.
func (c *Container) Registry() *prometheus.Registry { return c.registry }

// DB exposes the database handle for maintenance commands.
func (c *Container) DB() *sql.DB { return c.db }

// Close releases external resources.
func (c *Container) Close() error {
	if c.natsConn != nil {
		c.natsConn.Close()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
