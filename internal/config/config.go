// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package config loads Segmentum's layered configuration (defaults, optional
// YAML file, environment variables) with koanf and validates it.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Database      DatabaseConfig     `koanf:"database"`
	Server        ServerConfig       `koanf:"server"`
	API           APIConfig          `koanf:"api"`
	Security      SecurityConfig     `koanf:"security"`
	Logging       LoggingConfig      `koanf:"logging"`
	Matching      MatchingConfig     `koanf:"matching"`
	Effort        EffortConfig       `koanf:"effort"`
	Leaderboard   LeaderboardConfig  `koanf:"leaderboard"`
	Achievements  AchievementsConfig `koanf:"achievements"`
	Worker        WorkerConfig       `koanf:"worker"`
	Ledger        LedgerConfig       `koanf:"ledger"`
	Events        EventsConfig       `koanf:"events"`
	Notifications NotifyConfig       `koanf:"notifications"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path        string `koanf:"path"`
	MaxMemory   string `koanf:"max_memory"`
	Threads     int    `koanf:"threads"`      // 0 = runtime.NumCPU()
	SkipIndexes bool   `koanf:"skip_indexes"` // fast test setup

	// SpatialOptional lets the server start without the DuckDB spatial
	// extension; candidate lookup then falls back to bounding boxes.
	SpatialOptional bool `koanf:"spatial_optional"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`

	// MaxUploadBytes bounds the size of an uploaded GPX/FIT file.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// APIConfig holds pagination settings shared by list endpoints.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MatchingConfig holds the tolerances used to confirm a segment traversal.
type MatchingConfig struct {
	EndpointToleranceMeters float64 `koanf:"endpoint_tolerance_meters"`
	CorridorToleranceMeters float64 `koanf:"corridor_tolerance_meters"`
	CorridorSampleMeters    float64 `koanf:"corridor_sample_meters"`
	MaxOffCorridorRatio     float64 `koanf:"max_off_corridor_ratio"`
	MinTrackPoints          int     `koanf:"min_track_points"`
	CandidateRadiusMeters   float64 `koanf:"candidate_radius_meters"`
	MaxTraversals           int     `koanf:"max_traversals"`

	// TraversalPolicy selects which traversal becomes the effort when a
	// track covers a segment more than once: first, best or all.
	TraversalPolicy string `koanf:"traversal_policy"`

	// GridCellMeters sizes the spatial hash used to find endpoint passes.
	GridCellMeters float64 `koanf:"grid_cell_meters"`
}

// EffortConfig holds effort derivation and segment profile settings.
type EffortConfig struct {
	StopSpeedThresholdMPS float64    `koanf:"stop_speed_threshold_mps"`
	GradeWindowMeters     float64    `koanf:"grade_window_meters"`
	MinClimbGrade         float64    `koanf:"min_climb_grade"` // percent
	ClimbBands            ClimbBands `koanf:"climb_bands"`
}

// ClimbBands are the lower score bounds (distance meters x grade fraction)
// for each climb category.
type ClimbBands struct {
	HC   float64 `koanf:"hc"`
	Cat1 float64 `koanf:"cat1"`
	Cat2 float64 `koanf:"cat2"`
	Cat3 float64 `koanf:"cat3"`
	Cat4 float64 `koanf:"cat4"`
}

// LeaderboardConfig holds ranking settings.
type LeaderboardConfig struct {
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	PositionWindow  int           `koanf:"position_window"`
}

// AchievementsConfig holds crown and local legend settings.
type AchievementsConfig struct {
	LocalLegendWindow time.Duration `koanf:"local_legend_window"`
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`
}

// WorkerConfig holds activity processing pool settings.
type WorkerConfig struct {
	PoolSize         int           `koanf:"pool_size"` // 0 = runtime.NumCPU()
	QueueSize        int           `koanf:"queue_size"`
	MatchConcurrency int           `koanf:"match_concurrency"` // 0 = runtime.NumCPU()
	MaxAttempts      int           `koanf:"max_attempts"`
	InitialBackoff   time.Duration `koanf:"initial_backoff"`
	MaxBackoff       time.Duration `koanf:"max_backoff"`

	// Circuit breaker around the spatial candidate lookup.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// LedgerConfig selects where in-flight and processed activity state lives.
type LedgerConfig struct {
	Backend     string        `koanf:"backend"` // memory or badger
	Path        string        `koanf:"path"`
	InFlightTTL time.Duration `koanf:"inflight_ttl"`
	GCInterval  time.Duration `koanf:"gc_interval"` // badger value log GC; 0 disables
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	// Backend is gochannel (in-process) or nats (requires -tags nats).
	Backend          string        `koanf:"backend"`
	BufferSize       int64         `koanf:"buffer_size"`
	NATSURL          string        `koanf:"nats_url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	SubscribersCount int           `koanf:"subscribers_count"`
	DurablePrefix    string        `koanf:"durable_prefix"`
	QueueGroup       string        `koanf:"queue_group"`
	RetryMaxRetries  int           `koanf:"retry_max_retries"`
	RetryInterval    time.Duration `koanf:"retry_interval"`
	ThrottlePerSec   int64         `koanf:"throttle_per_second"`
	DedupEnabled     bool          `koanf:"dedup_enabled"`
	DedupTTL         time.Duration `koanf:"dedup_ttl"`
	PoisonTopic      string        `koanf:"poison_topic"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// NotifyConfig holds achievement notification delivery settings.
type NotifyConfig struct {
	WebhookURL       string        `koanf:"webhook_url"`
	WebhookRateLimit time.Duration `koanf:"webhook_rate_limit"`
	WebhookTimeout   time.Duration `koanf:"webhook_timeout"`
	LogEnabled       bool          `koanf:"log_enabled"`
}

// Load reads configuration from (in increasing priority) built-in defaults,
// the config file (CONFIG_PATH or config.yaml) and environment variables.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Defaults returns the built-in configuration. Tests use it as a base.
func Defaults() *Config {
	return defaultConfig()
}
