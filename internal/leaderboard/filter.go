// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package leaderboard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/segmentum/internal/models"
)

// ErrInvalidFilter is wrapped by every filter validation error.
var ErrInvalidFilter = errors.New("invalid leaderboard filter")

// TimeScope limits a leaderboard to efforts started in the current
// calendar period.
type TimeScope string

const (
	ScopeAll   TimeScope = "all"
	ScopeYear  TimeScope = "year"
	ScopeMonth TimeScope = "month"
	ScopeWeek  TimeScope = "week"
)

// AgeGroup is an inclusive age bracket such as "25-34" or an open one
// such as "70+".
type AgeGroup string

// AgeGroups lists the accepted age brackets.
var AgeGroups = []AgeGroup{"0-19", "20-24", "25-34", "35-44", "45-54", "55-64", "65-69", "70+"}

// WeightClass is a weight bracket in kilograms.
type WeightClass string

// WeightClasses lists the accepted weight brackets.
var WeightClasses = []WeightClass{"0-54", "55-64", "65-74", "75-84", "85-94", "95+"}

// bracket is a parsed "lo-hi" or "lo+" range; hi < 0 means open-ended.
type bracket struct {
	lo, hi int
}

func parseBracket(s string) (bracket, error) {
	if strings.HasSuffix(s, "+") {
		var lo int
		if _, err := fmt.Sscanf(s, "%d+", &lo); err != nil {
			return bracket{}, err
		}
		return bracket{lo: lo, hi: -1}, nil
	}
	var b bracket
	if _, err := fmt.Sscanf(s, "%d-%d", &b.lo, &b.hi); err != nil {
		return bracket{}, err
	}
	return b, nil
}

// Filter selects which efforts compete on a leaderboard. Every dimension is
// optional. Filters are values: the With methods return modified copies.
type Filter struct {
	scope       TimeScope
	gender      string
	ageGroup    AgeGroup
	weightClass WeightClass
	country     string
}

// Option configures a Filter built with NewFilter.
type Option func(*Filter)

// ByScope limits the filter to a time scope.
func ByScope(s TimeScope) Option { return func(f *Filter) { f.scope = s } }

// ByGender limits the filter to one profile gender.
func ByGender(g string) Option { return func(f *Filter) { f.gender = g } }

// ByAgeGroup limits the filter to one age group.
func ByAgeGroup(a AgeGroup) Option { return func(f *Filter) { f.ageGroup = a } }

// ByWeightClass limits the filter to one weight class.
func ByWeightClass(w WeightClass) Option { return func(f *Filter) { f.weightClass = w } }

// ByCountry limits the filter to one ISO 3166-1 alpha-2 country code.
func ByCountry(c string) Option { return func(f *Filter) { f.country = c } }

// NewFilter builds and validates a filter. With no options it is the
// all-time, unfiltered leaderboard.
func NewFilter(opts ...Option) (Filter, error) {
	f := Filter{scope: ScopeAll}
	for _, opt := range opts {
		opt(&f)
	}
	return f.normalize()
}

// ParseFilter reads scope, gender, age_group, weight_class and country from
// query parameters. Absent or empty parameters leave the dimension open.
func ParseFilter(v url.Values) (Filter, error) {
	opts := []Option{ByScope(TimeScope(v.Get("scope")))}
	if g := v.Get("gender"); g != "" {
		opts = append(opts, ByGender(g))
	}
	if a := v.Get("age_group"); a != "" {
		opts = append(opts, ByAgeGroup(AgeGroup(a)))
	}
	if w := v.Get("weight_class"); w != "" {
		opts = append(opts, ByWeightClass(WeightClass(w)))
	}
	if c := v.Get("country"); c != "" {
		opts = append(opts, ByCountry(c))
	}
	return NewFilter(opts...)
}

func (f Filter) normalize() (Filter, error) {
	f.scope = TimeScope(strings.ToLower(strings.TrimSpace(string(f.scope))))
	if f.scope == "" {
		f.scope = ScopeAll
	}
	switch f.scope {
	case ScopeAll, ScopeYear, ScopeMonth, ScopeWeek:
	default:
		return Filter{}, fmt.Errorf("%w: unknown scope %q", ErrInvalidFilter, f.scope)
	}

	f.gender = strings.ToUpper(strings.TrimSpace(f.gender))
	switch f.gender {
	case "", models.GenderMale, models.GenderFemale:
	default:
		return Filter{}, fmt.Errorf("%w: gender must be M or F", ErrInvalidFilter)
	}

	if f.ageGroup != "" && !containsAge(f.ageGroup) {
		return Filter{}, fmt.Errorf("%w: unknown age group %q", ErrInvalidFilter, f.ageGroup)
	}
	if f.weightClass != "" && !containsWeight(f.weightClass) {
		return Filter{}, fmt.Errorf("%w: unknown weight class %q", ErrInvalidFilter, f.weightClass)
	}

	f.country = strings.ToUpper(strings.TrimSpace(f.country))
	if f.country != "" && !isAlpha2(f.country) {
		return Filter{}, fmt.Errorf("%w: country must be an ISO 3166-1 alpha-2 code", ErrInvalidFilter)
	}
	return f, nil
}

func containsAge(a AgeGroup) bool {
	for _, g := range AgeGroups {
		if g == a {
			return true
		}
	}
	return false
}

func containsWeight(w WeightClass) bool {
	for _, c := range WeightClasses {
		if c == w {
			return true
		}
	}
	return false
}

func isAlpha2(s string) bool {
	return len(s) == 2 && s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
}

// Scope returns the time scope; "" means all time.
func (f Filter) Scope() TimeScope { return f.scope }

// Gender returns the gender limit, or "".
func (f Filter) Gender() string { return f.gender }

// AgeGroup returns the age group limit, or "".
func (f Filter) AgeGroup() AgeGroup { return f.ageGroup }

// WeightClass returns the weight class limit, or "".
func (f Filter) WeightClass() WeightClass { return f.weightClass }

// Country returns the country limit, or "".
func (f Filter) Country() string { return f.country }

// WithScope returns a copy of f limited to scope.
func (f Filter) WithScope(s TimeScope) (Filter, error) {
	f.scope = s
	return f.normalize()
}

// WithGender returns a copy of f limited to gender; "" removes the limit.
func (f Filter) WithGender(g string) (Filter, error) {
	f.gender = g
	return f.normalize()
}

// WithAgeGroup returns a copy of f limited to an age group.
func (f Filter) WithAgeGroup(a AgeGroup) (Filter, error) {
	f.ageGroup = a
	return f.normalize()
}

// WithWeightClass returns a copy of f limited to a weight class.
func (f Filter) WithWeightClass(w WeightClass) (Filter, error) {
	f.weightClass = w
	return f.normalize()
}

// WithCountry returns a copy of f limited to a country; "" removes the limit.
func (f Filter) WithCountry(c string) (Filter, error) {
	f.country = c
	return f.normalize()
}

// Key is a stable textual form of the filter, used in cache keys and
// returned in leaderboard views.
func (f Filter) Key() string {
	scope := f.scope
	if scope == "" {
		scope = ScopeAll
	}
	return fmt.Sprintf("scope=%s;gender=%s;age=%s;weight=%s;country=%s",
		scope, f.gender, f.ageGroup, f.weightClass, f.country)
}

// String implements fmt.Stringer.
func (f Filter) String() string { return f.Key() }

// Resolve turns the relative dimensions into absolute bounds as of now.
// The segment id is left for the caller to set.
//
//   - year: since January 1, month: since day 1, week: since Monday 00:00 UTC
//   - age group: a birth year range, ages counted by calendar year
//   - weight class: [lo, hi+1) kilograms
func (f Filter) Resolve(now time.Time) models.LeaderboardQuery {
	now = now.UTC()
	q := models.LeaderboardQuery{
		Gender:  f.gender,
		Country: f.country,
	}

	var since time.Time
	switch f.scope {
	case ScopeYear:
		since = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case ScopeMonth:
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case ScopeWeek:
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		since = day.AddDate(0, 0, -daysSinceMonday)
	}
	if !since.IsZero() {
		q.Since = &since
	}

	if f.ageGroup != "" {
		if b, err := parseBracket(string(f.ageGroup)); err == nil {
			maxYear := now.Year() - b.lo
			q.MaxBirthYear = &maxYear
			if b.hi >= 0 {
				minYear := now.Year() - b.hi
				q.MinBirthYear = &minYear
			}
		}
	}

	if f.weightClass != "" {
		if b, err := parseBracket(string(f.weightClass)); err == nil {
			lo := float64(b.lo)
			q.MinWeightKg = &lo
			if b.hi >= 0 {
				hi := float64(b.hi + 1)
				q.MaxWeightKg = &hi
			}
		}
	}
	return q
}
