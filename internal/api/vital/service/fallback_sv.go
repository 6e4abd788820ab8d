package vitalService

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"eldercare-vitals/internal/api/vital"
	"eldercare-vitals/internal/entity"
	"eldercare-vitals/pkg/utils"

	"github.com/sirupsen/logrus"
)

const (
	fallbackInstruction = `You read the display of a home blood pressure monitor.
Answer with exactly one line in the form SYS=<number> DIA=<number> PULSE=<number>,
using the systolic, diastolic and pulse values shown on the display, in that order.
Do not add units or any other text. If the three values cannot be read, answer UNREADABLE.`

	fallbackPrompt = "Read the systolic, diastolic and pulse values on this blood pressure monitor."

	// One call plus at most one retry.
	maxFallbackAttempts = 2
)

var errFallbackUnavailable = errors.New("fallback recognizer not configured")

var integerPattern = regexp.MustCompile(`\d+`)

// ParseFallbackText takes the first three integers in the reply as systolic, diastolic
// and pulse.
func ParseFallbackText(text string) (entity.Measurement, error) {
	found := integerPattern.FindAllString(text, 3)
	if len(found) < 3 {
		return entity.Measurement{}, fmt.Errorf("%w: found %d integers", vital.ErrFallbackParse, len(found))
	}

	values := make([]int, 3)
	for i, s := range found {
		v, err := strconv.Atoi(s)
		if err != nil {
			return entity.Measurement{}, fmt.Errorf("%w: %v", vital.ErrFallbackParse, err)
		}
		values[i] = v
	}

	return entity.Measurement{Systolic: values[0], Diastolic: values[1], Pulse: values[2]}, nil
}

// recognizeFallback retries only failed calls; an answer that does not parse is final.
func (s *vitalService) recognizeFallback(ctx context.Context, img *utils.DecodedImage, entry *logrus.Entry) (entity.Measurement, error) {
	if s.fallback == nil {
		return entity.Measurement{}, errFallbackUnavailable
	}

	attempts := min(max(s.settings.FallbackMaxAttempts, 1), maxFallbackAttempts)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return entity.Measurement{}, fmt.Errorf("%v: %w", lastErr, err)
			}
			return entity.Measurement{}, err
		}

		text, err := s.fallback.AnalyzeImage(ctx, img.Base64, img.MIMEType(), fallbackInstruction, fallbackPrompt)
		if err != nil {
			lastErr = fmt.Errorf("fallback call: %w", err)
			entry.WithFields(logrus.Fields{
				"stage":   "fallback",
				"attempt": attempt,
				"error":   err.Error(),
			}).Warn("Fallback call failed")
			continue
		}

		measurement, err := ParseFallbackText(text)
		if err != nil {
			entry.WithFields(logrus.Fields{
				"stage":      "fallback",
				"attempt":    attempt,
				"reply_size": len(text),
			}).Warn("Fallback reply did not contain three integers")
			return entity.Measurement{}, err
		}

		entry.WithFields(logrus.Fields{"stage": "fallback", "attempt": attempt}).Debug("Fallback reading parsed")
		return measurement, nil
	}

	return entity.Measurement{}, lastErr
}
