// Package capturetime resolves when a meter photo was taken and files it under the
// subject's local calendar day and clinical half-day.
package capturetime

import (
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"eldercare-vitals/internal/entity"
)

const (
	DefaultReferenceZone = "Asia/Taipei"
	LocalDateLayout      = "2006-01-02"

	// Epoch values at or above this are read as milliseconds.
	epochMillisThreshold = 1e11

	// 9999-12-31T23:59:59.999Z, the last instant a YYYY-MM-DD key can hold.
	maxEpochMillis = 253402300799999
)

var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

type Classification struct {
	CapturedAtUTC time.Time
	LocalDate     string
	LocalHour     int
	Period        entity.Period
	FromClient    bool
}

// LoadReferenceZone resolves an IANA zone name, falling back to a fixed UTC+8 zone when the
// name is unknown.
func LoadReferenceZone(name string) *time.Location {
	if name == "" {
		name = DefaultReferenceZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("UTC+8", 8*60*60)
	}
	return loc
}

// Parse reads an ISO-8601 timestamp or an epoch in seconds or milliseconds. Timestamps
// without an offset are taken to be wall-clock time in ref.
func Parse(raw string, ref *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if epoch, err := strconv.ParseFloat(raw, 64); err == nil {
		if epoch <= 0 || math.IsInf(epoch, 0) || math.IsNaN(epoch) {
			return time.Time{}, false
		}
		if epoch >= epochMillisThreshold {
			if epoch > maxEpochMillis {
				return time.Time{}, false
			}
			return time.UnixMilli(int64(epoch)).UTC(), true
		}
		sec := int64(epoch)
		nsec := int64((epoch - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), true
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, ref); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// Classify buckets a UTC instant into the local date and period of ref.
func Classify(instant time.Time, ref *time.Location) Classification {
	utc := instant.UTC().Truncate(time.Minute)
	local := utc.In(ref)

	period := entity.PeriodEvening
	if local.Hour() < 12 {
		period = entity.PeriodMorning
	}

	return Classification{
		CapturedAtUTC: utc,
		LocalDate:     local.Format(LocalDateLayout),
		LocalHour:     local.Hour(),
		Period:        period,
	}
}

// Resolve parses raw when possible and otherwise uses now, then classifies the result.
func Resolve(raw string, ref *time.Location, now time.Time) Classification {
	instant, ok := Parse(raw, ref)
	if !ok {
		instant = now
	}

	c := Classify(instant, ref)
	c.FromClient = ok
	return c
}

// ParseLocalDate validates a YYYY-MM-DD calendar date.
func ParseLocalDate(raw string) (string, bool) {
	d, err := time.Parse(LocalDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return d.Format(LocalDateLayout), true
}
