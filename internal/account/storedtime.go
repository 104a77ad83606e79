// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StoredTime is a nullable timestamp tolerant of storage backends that
// return text instead of native timestamps.
//
// # Normalization
//
// A text value without an explicit timezone designator is treated as UTC.
// Backends differ here: PostgreSQL timestamptz arrives as time.Time, but
// date-only or zone-less strings (seed data, lighter engines) would
// otherwise be parsed in server-local time and silently shift expiry
// windows.
type StoredTime struct {
	Time  time.Time
	Valid bool
}

// zoneless layouts accepted when the designator is missing; all are
// interpreted as UTC.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// StoredTimeOf wraps a concrete time.
func StoredTimeOf(value time.Time) StoredTime {
	return StoredTime{Time: value, Valid: true}
}

// Scan implements sql.Scanner for time.Time, string, []byte, and nil sources.
func (stored *StoredTime) Scan(src any) error {
	switch value := src.(type) {
	case nil:
		*stored = StoredTime{}
		return nil
	case time.Time:
		*stored = StoredTimeOf(value)
		return nil
	case string:
		return stored.parse(value)
	case []byte:
		return stored.parse(string(value))
	default:
		return fmt.Errorf("account: cannot scan %T into StoredTime", src)
	}
}

// Value implements driver.Valuer.
func (stored StoredTime) Value() (driver.Value, error) {
	if !stored.Valid {
		return nil, nil
	}
	return stored.Time, nil
}

func (stored *StoredTime) parse(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		*stored = StoredTime{}
		return nil
	}

	// Zone-aware forms first: RFC 3339 and the common SQL text form with an
	// offset suffix.
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05.999999999-07"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			*stored = StoredTimeOf(parsed)
			return nil
		}
	}

	// No designator: assume UTC rather than server-local time.
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			*stored = StoredTimeOf(parsed)
			return nil
		}
	}

	return fmt.Errorf("account: unrecognized timestamp %q", raw)
}

// MarshalJSON renders null for absent values and RFC 3339 otherwise.
func (stored StoredTime) MarshalJSON() ([]byte, error) {
	if !stored.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(stored.Time)
}

// UnmarshalJSON accepts null or any form Scan accepts.
func (stored *StoredTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*stored = StoredTime{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return stored.parse(raw)
}

// IsZero lets encoding/json's omitzero treat absent values as zero.
func (stored StoredTime) IsZero() bool { return !stored.Valid }
