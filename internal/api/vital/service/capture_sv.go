package vitalService

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"eldercare-vitals/internal/api/vital"
	"eldercare-vitals/internal/entity"
	"eldercare-vitals/pkg/capturetime"
	"eldercare-vitals/pkg/log"
	"eldercare-vitals/pkg/utils"

	"github.com/sirupsen/logrus"
)

var errPrimaryUnavailable = errors.New("primary recognizer not configured")

func (s *vitalService) Capture(ctx context.Context, in vital.CaptureInput) (vital.CaptureResult, error) {
	if in.SubjectID == "" {
		return vital.CaptureResult{}, vital.ErrSubjectRequired
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.CaptureTimeout)
	defer cancel()

	entry := log.WithContext(s.log, ctx).WithField("subject_id", in.SubjectID)

	img, err := s.utils.DecodeImage(in.ImageBytes, in.ImageBase64)
	if err != nil {
		entry.WithFields(logrus.Fields{
			"stage": "decode",
			"error": err.Error(),
		}).Warn("Rejected capture image")
		return vital.CaptureResult{}, fmt.Errorf("%w: %v", vital.ErrInvalidImage, err)
	}

	class := capturetime.Resolve(captureTimestamp(in), s.settings.ReferenceLocation, s.settings.Now())

	measurement, source, err := s.recognize(ctx, img, entry)
	if err != nil {
		return vital.CaptureResult{}, err
	}

	id, err := s.utils.NewULIDFromTimestamp(s.settings.Now())
	if err != nil {
		return vital.CaptureResult{}, fmt.Errorf("generate reading id: %w", err)
	}

	reading := entity.VitalReading{
		ID:                id,
		SubjectID:         in.SubjectID,
		LocalDate:         class.LocalDate,
		Period:            class.Period,
		Systolic:          measurement.Systolic,
		Diastolic:         measurement.Diastolic,
		Pulse:             measurement.Pulse,
		CapturedAtUTC:     class.CapturedAtUTC,
		DeviceTimezone:    strings.TrimSpace(in.Timezone),
		SourceEpochMillis: in.EpochMillis,
		Source:            source,
	}

	client, err := s.vitalRepository.NewClient(false)
	if err != nil {
		entry.WithFields(logrus.Fields{"stage": "store", "error": err.Error()}).Error("Failed to create repository client")
		return vital.CaptureResult{}, err
	}

	stored, created, err := client.Vital.UpsertReading(ctx, reading)
	if err != nil {
		entry.WithFields(logrus.Fields{
			"stage":      "store",
			"local_date": reading.LocalDate,
			"period":     reading.Period,
			"error":      err.Error(),
		}).Error("Failed to store vital reading")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return vital.CaptureResult{}, fmt.Errorf("%w: %v", vital.ErrRecognitionFailed, err)
		}
		return vital.CaptureResult{}, err
	}

	s.invalidateDayView(ctx, stored.SubjectID, stored.LocalDate)
	s.archivePhoto(ctx, reading, img, entry)

	entry.WithFields(logrus.Fields{
		"stage":      "store",
		"source":     source,
		"local_date": stored.LocalDate,
		"period":     stored.Period,
		"created":    created,
		"revision":   stored.Revision,
	}).Info("Vital reading stored")

	return vital.CaptureResult{
		Reading:     stored,
		Measurement: stored.Measurement(),
		Source:      source,
		Created:     created,
	}, nil
}

// captureTimestamp prefers the explicit timestamp and falls back to epoch_ms.
func captureTimestamp(in vital.CaptureInput) string {
	if raw := strings.TrimSpace(in.Timestamp); raw != "" {
		return raw
	}
	if in.EpochMillis != nil {
		return strconv.FormatInt(*in.EpochMillis, 10)
	}
	return ""
}

func (s *vitalService) recognize(ctx context.Context, img *utils.DecodedImage, entry *logrus.Entry) (entity.Measurement, entity.RecognitionSource, error) {
	partial, err := s.runPrimary(ctx, img)
	switch {
	case err != nil:
		entry.WithFields(logrus.Fields{
			"stage": "primary",
			"error": err.Error(),
		}).Warn("Primary recognition failed, using fallback")
	default:
		verdict := entity.ValidateMeasurement(partial)
		if verdict.Valid {
			entry.WithFields(logrus.Fields{"stage": "validate", "source": entity.SourcePrimary}).Debug("Primary reading accepted")
			return verdict.Measurement, entity.SourcePrimary, nil
		}
		entry.WithFields(logrus.Fields{
			"stage":  "validate",
			"source": entity.SourcePrimary,
			"reason": verdict.Reason,
		}).Info("Primary reading rejected, using fallback")
	}

	if err := ctx.Err(); err != nil {
		entry.WithFields(logrus.Fields{"stage": "primary", "error": err.Error()}).Warn("Capture deadline reached before fallback")
		return entity.Measurement{}, "", fmt.Errorf("%w: %v", vital.ErrRecognitionFailed, err)
	}

	measurement, err := s.recognizeFallback(ctx, img, entry)
	if err != nil {
		level := logrus.WarnLevel
		if !errors.Is(err, vital.ErrFallbackParse) {
			level = logrus.ErrorLevel
		}
		entry.WithFields(logrus.Fields{
			"stage": "fallback",
			"error": err.Error(),
		}).Log(level, "Fallback recognition failed")
		return entity.Measurement{}, "", fmt.Errorf("%w: %w", vital.ErrRecognitionFailed, err)
	}

	// Fallback output is stored even when implausible; it is only flagged.
	if verdict := entity.ValidateMeasurement(measurement.Partial()); !verdict.Valid {
		entry.WithFields(logrus.Fields{
			"stage":  "validate",
			"source": entity.SourceFallback,
			"reason": verdict.Reason,
		}).Warn("Fallback reading outside plausible range")
	}

	return measurement, entity.SourceFallback, nil
}

func (s *vitalService) runPrimary(ctx context.Context, img *utils.DecodedImage) (partial entity.PartialMeasurement, err error) {
	if s.primary == nil {
		return nil, errPrimaryUnavailable
	}

	defer func() {
		if r := recover(); r != nil {
			partial, err = nil, fmt.Errorf("primary recognizer panic: %v", r)
		}
	}()

	return s.primary.Recognize(ctx, img)
}
