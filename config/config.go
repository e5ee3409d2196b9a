package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Hours       HoursConfig       `yaml:"hours"`
	Eligibility EligibilityConfig `yaml:"eligibility"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
}

// LogConfig selects the logger mode.
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the task queue backend configuration. An empty Addr
// selects the in-process queue.
type RedisConfig struct {
	Addr               string `yaml:"addr"`
	QueueKey           string `yaml:"queue_key"`
	DialTimeoutSeconds int    `yaml:"dial_timeout_seconds"`
}

// SchedulerConfig controls the periodic eligibility batch pass.
type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalMinutes int           `yaml:"interval_minutes"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// HoursConfig holds the external hours-reporting service configuration and
// the promotion-hours policy. TierKeys maps a rating ordinal to the hours
// bucket key in the service's response; SeniorTierKeys are the buckets
// summed for controllers above the C1 tier.
type HoursConfig struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Attempts       int               `yaml:"attempts"`
	BackoffSeconds int               `yaml:"backoff_seconds"`
	RequiredHours  float64           `yaml:"required_hours"`
	TierKeys       map[int]string    `yaml:"tier_keys"`
	SeniorTierKeys []string          `yaml:"senior_tier_keys"`
}

// EligibilityConfig holds the facility policy for the eligibility rules.
type EligibilityConfig struct {
	HoldingFacilities []string `yaml:"holding_facilities"`
	ExcludedFacility  string   `yaml:"excluded_facility"`
	CompetencyCap     int      `yaml:"competency_cap"`
	RevalidationDays  int      `yaml:"revalidation_days"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the task worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path and fills in defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in defaults for unset values. Exposed so tests can
// build a Config without a file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Redis.QueueKey == "" {
		cfg.Redis.QueueKey = "eligibility:tasks"
	}
	if cfg.Redis.DialTimeoutSeconds <= 0 {
		cfg.Redis.DialTimeoutSeconds = 5
	}

	if cfg.Scheduler.IntervalMinutes <= 0 {
		cfg.Scheduler.IntervalMinutes = 60
	}
	cfg.Scheduler.Interval = time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute

	if cfg.Hours.TimeoutSeconds <= 0 {
		cfg.Hours.TimeoutSeconds = 30
	}
	if cfg.Hours.Attempts <= 0 {
		cfg.Hours.Attempts = 3
	}
	if cfg.Hours.BackoffSeconds <= 0 {
		cfg.Hours.BackoffSeconds = 5
	}
	if cfg.Hours.RequiredHours <= 0 {
		cfg.Hours.RequiredHours = 50
	}
	if len(cfg.Hours.TierKeys) == 0 {
		cfg.Hours.TierKeys = map[int]string{
			2: "s1",
			3: "s2",
			4: "s3",
			5: "c1",
			6: "c3",
			7: "i1",
			8: "i3",
		}
	}
	if len(cfg.Hours.SeniorTierKeys) == 0 {
		cfg.Hours.SeniorTierKeys = []string{"c1", "c3", "i1", "i3"}
	}

	if len(cfg.Eligibility.HoldingFacilities) == 0 {
		cfg.Eligibility.HoldingFacilities = []string{"ZAE", "ZZN", "ZZI"}
	}
	if cfg.Eligibility.ExcludedFacility == "" {
		cfg.Eligibility.ExcludedFacility = "ZZN"
	}
	if cfg.Eligibility.CompetencyCap <= 0 {
		cfg.Eligibility.CompetencyCap = 5
	}
	if cfg.Eligibility.RevalidationDays <= 0 {
		cfg.Eligibility.RevalidationDays = 180
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
}
