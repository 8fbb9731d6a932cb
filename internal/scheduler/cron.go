// Ludograph - Game Activity Tracking and Rollup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludograph

// Package scheduler runs the engine's periodic jobs: buffer flushes on a
// fixed interval, and stale-session sweeps and rollup aggregation on cron
// schedules.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression. Each field is a bitmask of
// permitted values, so matching a time is five bit tests.
type Schedule struct {
	minute uint64 // bits 0-59
	hour   uint32 // bits 0-23
	dom    uint32 // bits 1-31
	month  uint16 // bits 1-12
	dow    uint8  // bits 0-6, Sunday = 0

	// Wildcard flags for the standard dom/dow OR rule: when both fields are
	// restricted, a day matches if EITHER does; a wildcard field defers to
	// the other.
	domAny bool
	dowAny bool
}

// Parse parses a standard 5-field cron expression:
// minute hour day-of-month month day-of-week.
//
// Supported per-field syntax: "*", single values, ranges ("1-5"), lists
// ("1,3,5"), and steps ("*/15", "10-50/10"). Day-of-week accepts 0-7 with
// both 0 and 7 meaning Sunday.
//
// Examples:
//   - "*/15 * * * *" — every 15 minutes
//   - "0 4 * * *"    — daily at 04:00
//   - "0 0 * * 1"    — Mondays at midnight
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	var (
		s   Schedule
		err error
	)

	s.minute, _, err = parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}
	hour, _, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}
	s.hour = uint32(hour)
	dom, domAny, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-month field: %w", err)
	}
	s.dom, s.domAny = uint32(dom), domAny
	month, _, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}
	s.month = uint16(month)
	dow, dowAny, err := parseField(fields[4], 0, 7)
	if err != nil {
		return nil, fmt.Errorf("invalid day-of-week field: %w", err)
	}
	// Fold 7 (Sunday, POSIX alternative) onto bit 0.
	if dow&(1<<7) != 0 {
		dow = (dow &^ (1 << 7)) | 1
	}
	s.dow, s.dowAny = uint8(dow), dowAny

	return &s, nil
}

// Matches reports whether t satisfies the schedule, at minute resolution.
func (s *Schedule) Matches(t time.Time) bool {
	if s.minute&(1<<uint(t.Minute())) == 0 {
		return false
	}
	if s.hour&(1<<uint(t.Hour())) == 0 {
		return false
	}
	if s.month&(1<<uint(t.Month())) == 0 {
		return false
	}

	domMatch := s.dom&(1<<uint(t.Day())) != 0
	dowMatch := s.dow&(1<<uint(t.Weekday())) != 0

	switch {
	case s.domAny && s.dowAny:
		return true
	case s.domAny:
		return dowMatch
	case s.dowAny:
		return domMatch
	default:
		// Both restricted: standard cron ORs them.
		return domMatch || dowMatch
	}
}

// nextSearchLimit bounds the Next scan; no valid 5-field expression has a
// gap longer than this (Feb 29 recurs within 8 years).
const nextSearchLimit = 9 * 366 * 24 * 60

// Next returns the first time strictly after the given time that matches
// the schedule, evaluated in loc (UTC when nil). The zero time is returned
// for schedules that can never fire, such as "0 0 31 2 *".
func (s *Schedule) Next(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc).Truncate(time.Minute).Add(time.Minute)

	for i := 0; i < nextSearchLimit; i++ {
		// Skip whole days that cannot match before walking their minutes.
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
			i += 24*60 - 1
			continue
		}
		if s.Matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

// dayMatches checks only the date fields of the schedule.
func (s *Schedule) dayMatches(t time.Time) bool {
	if s.month&(1<<uint(t.Month())) == 0 {
		return false
	}
	domMatch := s.dom&(1<<uint(t.Day())) != 0
	dowMatch := s.dow&(1<<uint(t.Weekday())) != 0
	switch {
	case s.domAny && s.dowAny:
		return true
	case s.domAny:
		return dowMatch
	case s.dowAny:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// parseField parses one cron field into a bitmask of allowed values. The
// second return reports whether the field was an unrestricted wildcard,
// which the dom/dow OR rule needs to distinguish from an explicit full
// range.
func parseField(field string, minVal, maxVal int) (uint64, bool, error) {
	if field == "*" {
		return maskRange(minVal, maxVal, 1), true, nil
	}

	var mask uint64
	for _, part := range strings.Split(field, ",") {
		m, err := parsePart(part, minVal, maxVal)
		if err != nil {
			return 0, false, err
		}
		mask |= m
	}
	return mask, false, nil
}

// parsePart parses a single non-list element: value, range, or step.
func parsePart(part string, minVal, maxVal int) (uint64, error) {
	step := 1
	if base, stepStr, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(stepStr)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step value: %s", stepStr)
		}
		step = n
		part = base
		// "n/s" with a bare value means "from n to max", per Vixie cron.
		if part != "*" && !strings.Contains(part, "-") {
			start, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("invalid value: %s", part)
			}
			if start < minVal || start > maxVal {
				return 0, fmt.Errorf("value out of range: %d (allowed %d-%d)", start, minVal, maxVal)
			}
			return maskRange(start, maxVal, step), nil
		}
	}

	if part == "*" {
		return maskRange(minVal, maxVal, step), nil
	}

	if startStr, endStr, ok := strings.Cut(part, "-"); ok {
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return 0, fmt.Errorf("invalid range start: %s", startStr)
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return 0, fmt.Errorf("invalid range end: %s", endStr)
		}
		if start > end || start < minVal || end > maxVal {
			return 0, fmt.Errorf("invalid range: %d-%d (allowed %d-%d)", start, end, minVal, maxVal)
		}
		return maskRange(start, end, step), nil
	}

	val, err := strconv.Atoi(part)
	if err != nil {
		return 0, fmt.Errorf("invalid value: %s", part)
	}
	if val < minVal || val > maxVal {
		return 0, fmt.Errorf("value out of range: %d (allowed %d-%d)", val, minVal, maxVal)
	}
	return 1 << uint(val), nil
}

// maskRange sets every step-th bit from start to end inclusive.
func maskRange(start, end, step int) uint64 {
	var mask uint64
	for i := start; i <= end; i += step {
		mask |= 1 << uint(i)
	}
	return mask
}
