// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/segmentum/internal/models"
)

// UpsertUserProfile creates or replaces a user's demographic profile.
func (db *DB) UpsertUserProfile(ctx context.Context, p *models.UserProfile) error {
	defer observe("upsert_profile")()

	var gender, country interface{}
	if p.Gender != "" {
		gender = strings.ToUpper(p.Gender)
	}
	if p.Country != "" {
		country = strings.ToUpper(p.Country)
	}

	err := withConflictRetry(ctx, "upsert_profile", func() error {
		_, err := db.conn.ExecContext(ctx, `INSERT INTO user_profiles (
				user_id, gender, birth_year, weight_kg, country, updated_at
			) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				gender = EXCLUDED.gender,
				birth_year = EXCLUDED.birth_year,
				weight_kg = EXCLUDED.weight_kg,
				country = EXCLUDED.country,
				updated_at = EXCLUDED.updated_at`,
			p.UserID, gender, deref(p.BirthYear), deref(p.WeightKg), country, time.Now().UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}

// GetUserProfile returns a user's profile or ErrNotFound.
func (db *DB) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	defer observe("get_profile")()

	var (
		p       = models.UserProfile{UserID: userID}
		gender  sql.NullString
		year    sql.NullInt64
		weight  sql.NullFloat64
		country sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `SELECT gender, birth_year, weight_kg, country
		FROM user_profiles WHERE user_id = ?`, userID).Scan(&gender, &year, &weight, &country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	p.Gender = gender.String
	p.Country = country.String
	if year.Valid {
		y := int(year.Int64)
		p.BirthYear = &y
	}
	if weight.Valid {
		w := weight.Float64
		p.WeightKg = &w
	}
	return &p, nil
}
