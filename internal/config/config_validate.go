// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package config

import (
	"fmt"
	"time"
)

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateRateLimits,
		c.validateLogging,
		c.validateMatching,
		c.validateEffort,
		c.validateLeaderboard,
		c.validateAchievements,
		c.validateWorker,
		c.validateLedger,
		c.validateEvents,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

var validTraversalPolicies = map[string]bool{
	"first": true,
	"best":  true,
	"all":   true,
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.EndpointToleranceMeters <= 0 {
		return fmt.Errorf("MATCH_ENDPOINT_TOLERANCE must be positive")
	}
	if m.CorridorToleranceMeters <= 0 {
		return fmt.Errorf("MATCH_CORRIDOR_TOLERANCE must be positive")
	}
	if m.CorridorSampleMeters <= 0 {
		return fmt.Errorf("MATCH_CORRIDOR_SAMPLE must be positive")
	}
	if m.MaxOffCorridorRatio < 0 || m.MaxOffCorridorRatio >= 1 {
		return fmt.Errorf("MATCH_MAX_OFF_CORRIDOR must be in [0, 1)")
	}
	if m.MinTrackPoints < 2 {
		return fmt.Errorf("MATCH_MIN_TRACK_POINTS must be at least 2")
	}
	if m.CandidateRadiusMeters < m.EndpointToleranceMeters {
		return fmt.Errorf("MATCH_CANDIDATE_RADIUS must be at least the endpoint tolerance")
	}
	if m.MaxTraversals < 1 {
		return fmt.Errorf("MATCH_MAX_TRAVERSALS must be at least 1")
	}
	if !validTraversalPolicies[m.TraversalPolicy] {
		return fmt.Errorf("MATCH_TRAVERSAL_POLICY must be one of: first, best, all")
	}
	if m.GridCellMeters <= 0 {
		return fmt.Errorf("MATCH_GRID_CELL_METERS must be positive")
	}
	return nil
}

func (c *Config) validateEffort() error {
	if c.Effort.StopSpeedThresholdMPS < 0 {
		return fmt.Errorf("EFFORT_STOP_SPEED must not be negative")
	}
	if c.Effort.GradeWindowMeters <= 0 {
		return fmt.Errorf("EFFORT_GRADE_WINDOW must be positive")
	}
	b := c.Effort.ClimbBands
	if !(b.HC > b.Cat1 && b.Cat1 > b.Cat2 && b.Cat2 > b.Cat3 && b.Cat3 > b.Cat4 && b.Cat4 > 0) {
		return fmt.Errorf("climb bands must be strictly decreasing from HC to Cat4 and positive")
	}
	return nil
}

func (c *Config) validateLeaderboard() error {
	l := c.Leaderboard
	if l.DefaultPageSize < 1 || l.MaxPageSize < l.DefaultPageSize {
		return fmt.Errorf("leaderboard page sizes must satisfy 1 <= default <= max")
	}
	if l.PositionWindow < 0 {
		return fmt.Errorf("LEADERBOARD_WINDOW must not be negative")
	}
	if l.CacheTTL < 0 {
		return fmt.Errorf("LEADERBOARD_CACHE_TTL must not be negative")
	}
	return nil
}

func (c *Config) validateAchievements() error {
	if c.Achievements.LocalLegendWindow < 24*time.Hour {
		return fmt.Errorf("LOCAL_LEGEND_WINDOW must be at least 24h")
	}
	if c.Achievements.ReconcileInterval < time.Minute {
		return fmt.Errorf("ACHIEVEMENTS_RECONCILE must be at least 1m")
	}
	return nil
}

func (c *Config) validateWorker() error {
	w := c.Worker
	if w.PoolSize < 0 || w.MatchConcurrency < 0 {
		return fmt.Errorf("worker pool sizes must not be negative")
	}
	if w.QueueSize < 1 {
		return fmt.Errorf("WORKER_QUEUE_SIZE must be at least 1")
	}
	if w.MaxAttempts < 1 {
		return fmt.Errorf("WORKER_MAX_ATTEMPTS must be at least 1")
	}
	if w.InitialBackoff <= 0 || w.MaxBackoff < w.InitialBackoff {
		return fmt.Errorf("worker backoff must satisfy 0 < initial <= max")
	}
	if w.BreakerFailureThreshold == 0 {
		return fmt.Errorf("WORKER_BREAKER_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case "memory":
	case "badger":
		if c.Ledger.Path == "" {
			return fmt.Errorf("LEDGER_PATH is required for the badger ledger")
		}
	default:
		return fmt.Errorf("LEDGER_BACKEND must be one of: memory, badger")
	}
	if c.Ledger.InFlightTTL <= 0 {
		return fmt.Errorf("LEDGER_INFLIGHT_TTL must be positive")
	}
	if c.Ledger.GCInterval < 0 {
		return fmt.Errorf("LEDGER_GC_INTERVAL must not be negative")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "gochannel":
	case "nats":
		if c.Events.NATSURL == "" && !c.Events.EmbeddedServer {
			return fmt.Errorf("NATS_URL is required when the embedded server is disabled")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be one of: gochannel, nats")
	}
	if c.Events.PoisonTopic == "" {
		return fmt.Errorf("EVENTS_POISON_TOPIC must not be empty")
	}
	return nil
}
