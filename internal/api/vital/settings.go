package vital

import (
	"os"
	"strconv"
	"time"

	"eldercare-vitals/pkg/capturetime"
)

type Settings struct {
	ReferenceLocation   *time.Location
	CaptureTimeout      time.Duration
	FallbackMaxAttempts int
	DayViewTTL          time.Duration
	DetectionConfidence float64
	MaxImageBytes       int64
	MaxImagePixels      int64
	Now                 func() time.Time
}

func DefaultSettings() Settings {
	return Settings{
		ReferenceLocation:   capturetime.LoadReferenceZone(capturetime.DefaultReferenceZone),
		CaptureTimeout:      45 * time.Second,
		FallbackMaxAttempts: 2,
		DayViewTTL:          10 * time.Minute,
		DetectionConfidence: 0.5,
		MaxImageBytes:       10 * 1024 * 1024,
		MaxImagePixels:      40_000_000,
		Now:                 time.Now,
	}
}

// SettingsFromEnv overlays DefaultSettings with whatever the environment sets.
func SettingsFromEnv() Settings {
	s := DefaultSettings()

	if zone := os.Getenv("REFERENCE_TIMEZONE"); zone != "" {
		s.ReferenceLocation = capturetime.LoadReferenceZone(zone)
	}
	if d, err := time.ParseDuration(os.Getenv("CAPTURE_TIMEOUT")); err == nil && d > 0 {
		s.CaptureTimeout = d
	}
	if n, err := strconv.Atoi(os.Getenv("FALLBACK_MAX_ATTEMPTS")); err == nil && n > 0 {
		s.FallbackMaxAttempts = n
	}
	if d, err := time.ParseDuration(os.Getenv("DAY_VIEW_CACHE_TTL")); err == nil && d > 0 {
		s.DayViewTTL = d
	}
	if f, err := strconv.ParseFloat(os.Getenv("DETECTION_CONFIDENCE"), 64); err == nil && f >= 0 && f < 1 {
		s.DetectionConfidence = f
	}
	if n, err := strconv.ParseInt(os.Getenv("MAX_IMAGE_BYTES"), 10, 64); err == nil && n > 0 {
		s.MaxImageBytes = n
	}
	if n, err := strconv.ParseInt(os.Getenv("MAX_IMAGE_PIXELS"), 10, 64); err == nil && n > 0 {
		s.MaxImagePixels = n
	}

	return s
}
