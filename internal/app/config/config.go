// Package config provides read-only access to application
// configuration. The interface abstracts the configuration source
// (YAML file, ENV, defaults) so upper layers never depend on how
// settings were loaded.
package config

import "time"

// Config provides read-only access to application configuration.
type Config interface {
	// Core settings
	DBPath() string   // SQLite database path (DREAMLOG_DB_PATH)
	LogLevel() string // Log level: debug/info/warn/error (DREAMLOG_LOG_LEVEL)

	// Scheduler settings
	SchedulerPollInterval() time.Duration // How often due tasks are polled
	RetryDelay() time.Duration            // Delay before a failed attempt reruns
	WorkerCount() int                     // Concurrent task executions
	AttemptTimeout() time.Duration        // Per-attempt context deadline
	ClaimTTL() time.Duration              // Single-flight claim lifetime
	SchedulerBatchSize() int              // Max due tasks fetched per poll
	MaxAttempts() int                     // Attempts before terminal failure

	// Dispatcher settings
	DispatcherPollInterval() time.Duration
	DispatcherBatchSize() int

	// AI collaborator
	AIAPIKey() string
	AIBaseURL() string
	AITextModel() string
	AIImageModel() string
	AITimeout() time.Duration

	// Image storage
	StorageBackend() string // "s3" or "local"
	S3Bucket() string
	S3Prefix() string
	S3Region() string
	S3Endpoint() string // Custom endpoint for MinIO-style stores
	URLExpiry() time.Duration
	LocalStorageDir() string

	// Notifications
	NATSURL() string // Empty disables the NATS notifier
	NATSSubjectPrefix() string

	// Creation rate limiting
	EntriesPerHour() int

	// Observability
	MetricsAddr() string // Empty disables the metrics endpoint

	// Metadata
	ConfigSource() string // "yaml", "env", or "default"
	ConfigPath() string   // Path to dreamlog.yaml if loaded from file
}

// Values holds every configuration value. The infrastructure loader
// fills it and wraps it in an AppConfig.
type Values struct {
	DBPath   string
	LogLevel string

	SchedulerPollInterval time.Duration
	RetryDelay            time.Duration
	WorkerCount           int
	AttemptTimeout        time.Duration
	ClaimTTL              time.Duration
	SchedulerBatchSize    int
	MaxAttempts           int

	DispatcherPollInterval time.Duration
	DispatcherBatchSize    int

	AIAPIKey     string
	AIBaseURL    string
	AITextModel  string
	AIImageModel string
	AITimeout    time.Duration

	StorageBackend  string
	S3Bucket        string
	S3Prefix        string
	S3Region        string
	S3Endpoint      string
	URLExpiry       time.Duration
	LocalStorageDir string

	NATSURL           string
	NATSSubjectPrefix string

	EntriesPerHour int

	MetricsAddr string

	ConfigSource string
	ConfigPath   string
}

// AppConfig is the concrete implementation of Config.
type AppConfig struct {
	v Values
}

// NewAppConfig wraps loaded values in the read-only Config view.
func NewAppConfig(v Values) *AppConfig {
	return &AppConfig{v: v}
}

func (c *AppConfig) DBPath() string   { return c.v.DBPath }
func (c *AppConfig) LogLevel() string { return c.v.LogLevel }

func (c *AppConfig) SchedulerPollInterval() time.Duration { return c.v.SchedulerPollInterval }
func (c *AppConfig) RetryDelay() time.Duration            { return c.v.RetryDelay }
func (c *AppConfig) WorkerCount() int                     { return c.v.WorkerCount }
func (c *AppConfig) AttemptTimeout() time.Duration        { return c.v.AttemptTimeout }
func (c *AppConfig) ClaimTTL() time.Duration              { return c.v.ClaimTTL }
func (c *AppConfig) SchedulerBatchSize() int              { return c.v.SchedulerBatchSize }
func (c *AppConfig) MaxAttempts() int                     { return c.v.MaxAttempts }

func (c *AppConfig) DispatcherPollInterval() time.Duration { return c.v.DispatcherPollInterval }
func (c *AppConfig) DispatcherBatchSize() int              { return c.v.DispatcherBatchSize }

func (c *AppConfig) AIAPIKey() string          { return c.v.AIAPIKey }
func (c *AppConfig) AIBaseURL() string         { return c.v.AIBaseURL }
func (c *AppConfig) AITextModel() string       { return c.v.AITextModel }
func (c *AppConfig) AIImageModel() string      { return c.v.AIImageModel }
func (c *AppConfig) AITimeout() time.Duration  { return c.v.AITimeout }

func (c *AppConfig) StorageBackend() string     { return c.v.StorageBackend }
func (c *AppConfig) S3Bucket() string           { return c.v.S3Bucket }
func (c *AppConfig) S3Prefix() string           { return c.v.S3Prefix }
func (c *AppConfig) S3Region() string           { return c.v.S3Region }
func (c *AppConfig) S3Endpoint() string         { return c.v.S3Endpoint }
func (c *AppConfig) URLExpiry() time.Duration   { return c.v.URLExpiry }
func (c *AppConfig) LocalStorageDir() string    { return c.v.LocalStorageDir }

func (c *AppConfig) NATSURL() string           { return c.v.NATSURL }
func (c *AppConfig) NATSSubjectPrefix() string { return c.v.NATSSubjectPrefix }

func (c *AppConfig) EntriesPerHour() int { return c.v.EntriesPerHour }

func (c *AppConfig) MetricsAddr() string { return c.v.MetricsAddr }

func (c *AppConfig) ConfigSource() string { return c.v.ConfigSource }
func (c *AppConfig) ConfigPath() string   { return c.v.ConfigPath }
