// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
database_extensions.go - DuckDB Extension Installation

Only the spatial extension is used. It provides the GEOMETRY type, ST_*
functions and R-tree indexes behind spatial candidate lookup.

Installation Strategy:
 1. If optional and the extension file is not present locally, skip it
    (no network download, which can hang inside CGO)
 2. Try INSTALL spatial with retry for transient network failures
 3. If install fails, try LOAD (may already be installed)
 4. If optional and everything fails, continue with bounding-box lookup

Environment Variables:
  - DUCKDB_SPATIAL_OPTIONAL=true: Allow startup without the spatial extension
  - DUCKDB_EXTENSION_TIMEOUT: hard timeout for extension statements (default 30s)
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/tomtom215/segmentum/internal/logging"
)

// extensionTimeout is the hard timeout for extension operations.
// CGO calls don't respect context cancellation, so the timeout is enforced
// with a goroutine and select.
var extensionTimeout = getExtensionTimeout()

// duckdbVersion is the DuckDB version used for extension paths.
// Must match the duckdb-go bindings in go.mod.
const duckdbVersion = "v1.4.3"

// extensionRetryConfig controls retry behavior for extension operations
type extensionRetryConfig struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BackoffMult float64
}

var defaultRetryConfig = extensionRetryConfig{
	MaxRetries:  3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	BackoffMult: 2.0,
}

func getExtensionTimeout() time.Duration {
	if timeoutStr := os.Getenv("DUCKDB_EXTENSION_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// isExtensionInstalledLocally checks the local DuckDB extension directory:
// ~/.duckdb/extensions/{version}/{platform}/{name}.duckdb_extension
func isExtensionInstalledLocally(extensionName string) bool {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	platform := runtime.GOOS + "_" + runtime.GOARCH
	extPath := filepath.Join(homeDir, ".duckdb", "extensions", duckdbVersion, platform, extensionName+".duckdb_extension")
	_, err = os.Stat(extPath)
	return err == nil
}

// spatialOptional reports whether startup may proceed without spatial.
func (db *DB) spatialOptional() bool {
	return db.cfg.SpatialOptional || os.Getenv("DUCKDB_SPATIAL_OPTIONAL") == "true"
}

// installExtensions installs and loads the spatial extension.
// Returns an error only when spatial is required and unavailable.
func (db *DB) installExtensions() error {
	optional := db.spatialOptional()

	if optional && !isExtensionInstalledLocally("spatial") {
		db.spatialAvailable = false
		logging.Info().Msg("Spatial extension not found locally, candidate lookup will use bounding boxes")
		return nil
	}

	if err := db.installSpatial(); err != nil {
		if optional {
			db.spatialAvailable = false
			logging.Warn().Err(err).Msg("Spatial extension unavailable (DUCKDB_SPATIAL_OPTIONAL=true), creating tables without GEOMETRY columns")
			return nil
		}
		return fmt.Errorf("failed to install spatial extension: %w. "+
			"Pre-install extensions or set DUCKDB_SPATIAL_OPTIONAL=true", err)
	}
	db.spatialAvailable = true
	return nil
}

func (db *DB) installSpatial() error {
	if err := db.execWithRetry("INSTALL spatial;", defaultRetryConfig); err != nil {
		if loadErr := db.execWithHardTimeout("LOAD spatial;"); loadErr != nil {
			return fmt.Errorf("install error: %w, load error: %w", err, loadErr)
		}
	} else if err := db.execWithHardTimeout("LOAD spatial;"); err != nil {
		return fmt.Errorf("load error: %w", err)
	}

	// Verify the functions candidate lookup relies on
	if err := db.execWithHardTimeout("SELECT ST_Intersects(ST_Point(0, 0), ST_MakeEnvelope(-1, -1, 1, 1));"); err != nil {
		return fmt.Errorf("spatial extension loaded but functions unavailable: %w", err)
	}
	return nil
}

// execWithHardTimeout executes a SQL statement with a goroutine-based hard timeout
func (db *DB) execWithHardTimeout(query string) error {
	resultCh := make(chan error, 1)

	ctx, cancel := context.WithTimeout(context.Background(), extensionTimeout)
	defer cancel()

	go func() {
		_, err := db.conn.ExecContext(ctx, query)
		resultCh <- err
	}()

	select {
	case err := <-resultCh:
		return err
	case <-time.After(extensionTimeout):
		return fmt.Errorf("operation timed out after %v", extensionTimeout)
	}
}

// execWithRetry executes a SQL statement with retry logic and exponential backoff
func (db *DB) execWithRetry(query string, cfg extensionRetryConfig) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logging.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("query", query).
				Msg("Retrying extension operation")
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * cfg.BackoffMult)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		err := db.execWithHardTimeout(query)
		if err == nil {
			return nil
		}
		lastErr = err

		errStr := err.Error()
		isRetryable := strings.Contains(errStr, "timed out") ||
			strings.Contains(errStr, "timeout") ||
			strings.Contains(errStr, "connection refused") ||
			strings.Contains(errStr, "503") ||
			strings.Contains(errStr, "temporary failure")
		if !isRetryable {
			return err
		}

		logging.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", cfg.MaxRetries+1).
			Msg("Extension operation failed, will retry")
	}

	return fmt.Errorf("extension operation failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
