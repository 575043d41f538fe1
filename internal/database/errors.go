// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package database

import (
	"database/sql"
	"io"

	"github.com/tomtom215/segmentum/internal/logging"
)

// closeWithLog closes a resource and logs any error
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}

// rollback aborts tx unless it already committed, logging failures.
func rollback(tx *sql.Tx, cause error) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		logging.Error().
			Err(err).
			AnErr("original_error", cause).
			Msg("Transaction rollback failed")
	}
}

// deref turns an optional value into a driver argument: nil becomes NULL.
func deref[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
