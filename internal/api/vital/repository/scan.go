package vitalRepository

import (
	"fmt"
	"time"

	"eldercare-vitals/pkg/capturetime"
)

// Postgres hands back time.Time for DATE and TIMESTAMPTZ columns while SQLite stores text,
// so both column kinds accept either representation.

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

type dbTime time.Time

func (t *dbTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime(time.Time{})
		return nil
	case time.Time:
		*t = dbTime(v)
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

type dbDate string

func (d *dbDate) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
		return nil
	case time.Time:
		*d = dbDate(v.Format(capturetime.LocalDateLayout))
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into date", src)
	}
}

func (d *dbDate) parse(s string) error {
	if len(s) >= len(capturetime.LocalDateLayout) {
		if parsed, err := time.Parse(capturetime.LocalDateLayout, s[:len(capturetime.LocalDateLayout)]); err == nil {
			*d = dbDate(parsed.Format(capturetime.LocalDateLayout))
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}
