// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/segmentum/config.yaml",
	"/etc/segmentum/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "/data/segmentum.duckdb",
			MaxMemory:       "2GB",
			Threads:         0,
			SpatialOptional: true,
		},
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			Timeout:        30 * time.Second,
			MaxUploadBytes: 32 << 20,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Matching: MatchingConfig{
			EndpointToleranceMeters: 25,
			CorridorToleranceMeters: 35,
			CorridorSampleMeters:    20,
			MaxOffCorridorRatio:     0.05,
			MinTrackPoints:          2,
			CandidateRadiusMeters:   100,
			MaxTraversals:           10,
			TraversalPolicy:         "first",
			GridCellMeters:          50,
		},
		Effort: EffortConfig{
			StopSpeedThresholdMPS: 1.0,
			GradeWindowMeters:     100,
			MinClimbGrade:         3,
			ClimbBands: ClimbBands{
				HC:   800,
				Cat1: 640,
				Cat2: 320,
				Cat3: 160,
				Cat4: 80,
			},
		},
		Leaderboard: LeaderboardConfig{
			CacheTTL:        30 * time.Second,
			DefaultPageSize: 25,
			MaxPageSize:     200,
			PositionWindow:  2,
		},
		Achievements: AchievementsConfig{
			LocalLegendWindow: 90 * 24 * time.Hour,
			ReconcileInterval: time.Hour,
		},
		Worker: WorkerConfig{
			PoolSize:                0,
			QueueSize:               1024,
			MatchConcurrency:        0,
			MaxAttempts:             5,
			InitialBackoff:          500 * time.Millisecond,
			MaxBackoff:              30 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
		},
		Ledger: LedgerConfig{
			Backend:     "memory",
			Path:        "/data/ledger",
			InFlightTTL: 30 * time.Minute,
			GCInterval:  10 * time.Minute,
		},
		Events: EventsConfig{
			Backend:          "gochannel",
			BufferSize:       256,
			NATSURL:          "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			SubscribersCount: 4,
			DurablePrefix:    "segmentum",
			QueueGroup:       "segmentum-workers",
			RetryMaxRetries:  3,
			RetryInterval:    100 * time.Millisecond,
			ThrottlePerSec:   0,
			DedupEnabled:     true,
			DedupTTL:         5 * time.Minute,
			PoisonTopic:      "events.poison",
			CloseTimeout:     30 * time.Second,
		},
		Notifications: NotifyConfig{
			WebhookRateLimit: time.Second,
			WebhookTimeout:   10 * time.Second,
			LogEnabled:       true,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional YAML)
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// MATCH_ENDPOINT_TOLERANCE -> matching.endpoint_tolerance_meters
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"duckdb_path":             "database.path",
	"duckdb_max_memory":       "database.max_memory",
	"duckdb_threads":          "database.threads",
	"duckdb_skip_indexes":     "database.skip_indexes",
	"duckdb_spatial_optional": "database.spatial_optional",

	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"max_upload_bytes": "server.max_upload_bytes",

	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"match_endpoint_tolerance":   "matching.endpoint_tolerance_meters",
	"match_corridor_tolerance":   "matching.corridor_tolerance_meters",
	"match_corridor_sample":      "matching.corridor_sample_meters",
	"match_max_off_corridor":     "matching.max_off_corridor_ratio",
	"match_min_track_points":     "matching.min_track_points",
	"match_candidate_radius":     "matching.candidate_radius_meters",
	"match_max_traversals":       "matching.max_traversals",
	"match_traversal_policy":     "matching.traversal_policy",
	"match_grid_cell_meters":     "matching.grid_cell_meters",
	"effort_stop_speed":          "effort.stop_speed_threshold_mps",
	"effort_grade_window":        "effort.grade_window_meters",
	"effort_min_climb_grade":     "effort.min_climb_grade",
	"climb_band_hc":              "effort.climb_bands.hc",
	"climb_band_cat1":            "effort.climb_bands.cat1",
	"climb_band_cat2":            "effort.climb_bands.cat2",
	"climb_band_cat3":            "effort.climb_bands.cat3",
	"climb_band_cat4":            "effort.climb_bands.cat4",
	"leaderboard_cache_ttl":      "leaderboard.cache_ttl",
	"leaderboard_page_size":      "leaderboard.default_page_size",
	"leaderboard_max_page_size":  "leaderboard.max_page_size",
	"leaderboard_window":         "leaderboard.position_window",
	"local_legend_window":        "achievements.local_legend_window",
	"achievements_reconcile":     "achievements.reconcile_interval",
	"worker_pool_size":           "worker.pool_size",
	"worker_queue_size":          "worker.queue_size",
	"worker_match_concurrency":   "worker.match_concurrency",
	"worker_max_attempts":        "worker.max_attempts",
	"worker_initial_backoff":     "worker.initial_backoff",
	"worker_max_backoff":         "worker.max_backoff",
	"worker_breaker_threshold":   "worker.breaker_failure_threshold",
	"worker_breaker_timeout":     "worker.breaker_timeout",
	"ledger_backend":             "ledger.backend",
	"ledger_path":                "ledger.path",
	"ledger_inflight_ttl":        "ledger.inflight_ttl",
	"ledger_gc_interval":         "ledger.gc_interval",
	"events_backend":             "events.backend",
	"events_buffer_size":         "events.buffer_size",
	"nats_url":                   "events.nats_url",
	"nats_embedded":              "events.embedded_server",
	"nats_store_dir":             "events.store_dir",
	"nats_subscribers":           "events.subscribers_count",
	"nats_durable_prefix":        "events.durable_prefix",
	"nats_queue_group":           "events.queue_group",
	"events_retry_max":           "events.retry_max_retries",
	"events_retry_interval":      "events.retry_interval",
	"events_throttle_per_second": "events.throttle_per_second",
	"events_dedup_enabled":       "events.dedup_enabled",
	"events_dedup_ttl":           "events.dedup_ttl",
	"events_poison_topic":        "events.poison_topic",
	"events_close_timeout":       "events.close_timeout",
	"webhook_url":                "notifications.webhook_url",
	"webhook_rate_limit":         "notifications.webhook_rate_limit",
	"webhook_timeout":            "notifications.webhook_timeout",
	"notify_log_enabled":         "notifications.log_enabled",
}

// envTransformFunc maps environment variable names to koanf config paths.
//
//   - HTTP_PORT -> server.port
//   - MATCH_ENDPOINT_TOLERANCE -> matching.endpoint_tolerance_meters
//   - LEDGER_BACKEND -> ledger.backend
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
