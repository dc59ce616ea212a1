// Package config loads application settings from dreamlog.yaml with
// DREAMLOG_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	appconfig "github.com/kalinpl/dreamlog/internal/app/config"
)

// fileConfig mirrors the dreamlog.yaml layout. Durations use Go syntax
// ("15m", "2h"). Every field is optional; unset fields keep defaults.
type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	Scheduler struct {
		PollInterval   string `yaml:"poll_interval"`
		RetryDelay     string `yaml:"retry_delay"`
		WorkerCount    int    `yaml:"worker_count"`
		AttemptTimeout string `yaml:"attempt_timeout"`
		ClaimTTL       string `yaml:"claim_ttl"`
		BatchSize      int    `yaml:"batch_size"`
		MaxAttempts    int    `yaml:"max_attempts"`
	} `yaml:"scheduler"`

	Dispatcher struct {
		PollInterval string `yaml:"poll_interval"`
		BatchSize    int    `yaml:"batch_size"`
	} `yaml:"dispatcher"`

	AI struct {
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		TextModel  string `yaml:"text_model"`
		ImageModel string `yaml:"image_model"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"ai"`

	Storage struct {
		Backend   string `yaml:"backend"`
		Bucket    string `yaml:"bucket"`
		Prefix    string `yaml:"prefix"`
		Region    string `yaml:"region"`
		Endpoint  string `yaml:"endpoint"`
		URLExpiry string `yaml:"url_expiry"`
		LocalDir  string `yaml:"local_dir"`
	} `yaml:"storage"`

	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	RateLimit struct {
		EntriesPerHour int `yaml:"entries_per_hour"`
	} `yaml:"rate_limit"`

	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads configuration with precedence ENV > YAML > defaults.
// A missing file at path is not an error; a malformed file is.
func Load(path string) (*appconfig.AppConfig, error) {
	v := defaults()

	source := "default"
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if err := applyFile(&v, fc); err != nil {
				return nil, fmt.Errorf("invalid %s: %w", path, err)
			}
			source = "yaml"
			v.ConfigPath = path
		case os.IsNotExist(err):
			// keep defaults
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if applyEnv(&v) {
		source = "env"
	}
	v.ConfigSource = source

	return appconfig.NewAppConfig(v), nil
}

func defaults() appconfig.Values {
	return appconfig.Values{
		DBPath:   "dreamlog.db",
		LogLevel: "info",

		SchedulerPollInterval: 5 * time.Second,
		RetryDelay:            15 * time.Minute,
		WorkerCount:           4,
		AttemptTimeout:        2 * time.Minute,
		ClaimTTL:              5 * time.Minute,
		SchedulerBatchSize:    20,
		MaxAttempts:           8,

		DispatcherPollInterval: 2 * time.Second,
		DispatcherBatchSize:    50,

		AIBaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		AITextModel:  "gemini-1.5-flash-latest",
		AIImageModel: "imagen-3.0-generate-001",
		AITimeout:    60 * time.Second,

		StorageBackend:  "local",
		URLExpiry:       time.Hour,
		LocalStorageDir: ".dreamlog/images",

		NATSSubjectPrefix: "dreamlog.entry",

		EntriesPerHour: 20,
	}
}

func applyFile(v *appconfig.Values, fc fileConfig) error {
	setStr(&v.DBPath, fc.DBPath)
	setStr(&v.LogLevel, fc.LogLevel)

	if err := setDur(&v.SchedulerPollInterval, fc.Scheduler.PollInterval); err != nil {
		return err
	}
	if err := setDur(&v.RetryDelay, fc.Scheduler.RetryDelay); err != nil {
		return err
	}
	setInt(&v.WorkerCount, fc.Scheduler.WorkerCount)
	if err := setDur(&v.AttemptTimeout, fc.Scheduler.AttemptTimeout); err != nil {
		return err
	}
	if err := setDur(&v.ClaimTTL, fc.Scheduler.ClaimTTL); err != nil {
		return err
	}
	setInt(&v.SchedulerBatchSize, fc.Scheduler.BatchSize)
	setInt(&v.MaxAttempts, fc.Scheduler.MaxAttempts)

	if err := setDur(&v.DispatcherPollInterval, fc.Dispatcher.PollInterval); err != nil {
		return err
	}
	setInt(&v.DispatcherBatchSize, fc.Dispatcher.BatchSize)

	setStr(&v.AIAPIKey, fc.AI.APIKey)
	setStr(&v.AIBaseURL, fc.AI.BaseURL)
	setStr(&v.AITextModel, fc.AI.TextModel)
	setStr(&v.AIImageModel, fc.AI.ImageModel)
	if err := setDur(&v.AITimeout, fc.AI.Timeout); err != nil {
		return err
	}

	setStr(&v.StorageBackend, fc.Storage.Backend)
	setStr(&v.S3Bucket, fc.Storage.Bucket)
	setStr(&v.S3Prefix, fc.Storage.Prefix)
	setStr(&v.S3Region, fc.Storage.Region)
	setStr(&v.S3Endpoint, fc.Storage.Endpoint)
	if err := setDur(&v.URLExpiry, fc.Storage.URLExpiry); err != nil {
		return err
	}
	setStr(&v.LocalStorageDir, fc.Storage.LocalDir)

	setStr(&v.NATSURL, fc.NATS.URL)
	setStr(&v.NATSSubjectPrefix, fc.NATS.SubjectPrefix)

	setInt(&v.EntriesPerHour, fc.RateLimit.EntriesPerHour)

	setStr(&v.MetricsAddr, fc.MetricsAddr)
	return nil
}

// applyEnv overlays DREAMLOG_* variables. Returns true if any were set.
func applyEnv(v *appconfig.Values) bool {
	found := false
	get := func(k string) string {
		val := os.Getenv(k)
		if val != "" {
			found = true
		}
		return val
	}

	setStr(&v.DBPath, get("DREAMLOG_DB_PATH"))
	setStr(&v.LogLevel, get("DREAMLOG_LOG_LEVEL"))
	envDur(&v.SchedulerPollInterval, get("DREAMLOG_SCHEDULER_POLL_INTERVAL"))
	envDur(&v.RetryDelay, get("DREAMLOG_RETRY_DELAY"))
	envInt(&v.WorkerCount, get("DREAMLOG_WORKER_COUNT"))
	envDur(&v.AttemptTimeout, get("DREAMLOG_ATTEMPT_TIMEOUT"))
	envInt(&v.MaxAttempts, get("DREAMLOG_MAX_ATTEMPTS"))
	setStr(&v.AIAPIKey, get("DREAMLOG_AI_API_KEY"))
	setStr(&v.AIBaseURL, get("DREAMLOG_AI_BASE_URL"))
	setStr(&v.StorageBackend, get("DREAMLOG_STORAGE_BACKEND"))
	setStr(&v.S3Bucket, get("DREAMLOG_S3_BUCKET"))
	setStr(&v.S3Region, get("DREAMLOG_S3_REGION"))
	setStr(&v.S3Endpoint, get("DREAMLOG_S3_ENDPOINT"))
	setStr(&v.LocalStorageDir, get("DREAMLOG_LOCAL_STORAGE_DIR"))
	setStr(&v.NATSURL, get("DREAMLOG_NATS_URL"))
	envInt(&v.EntriesPerHour, get("DREAMLOG_ENTRIES_PER_HOUR"))
	setStr(&v.MetricsAddr, get("DREAMLOG_METRICS_ADDR"))

	return found
}

func setStr(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func setInt(dst *int, val int) {
	if val > 0 {
		*dst = val
	}
}

func setDur(dst *time.Duration, val string) error {
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", val, err)
	}
	*dst = d
	return nil
}

func envDur(dst *time.Duration, val string) {
	if val == "" {
		return
	}
	if d, err := time.ParseDuration(val); err == nil {
		*dst = d
	}
}

func envInt(dst *int, val string) {
	if val == "" {
		return
	}
	if n, err := strconv.Atoi(val); err == nil && n > 0 {
		*dst = n
	}
}
