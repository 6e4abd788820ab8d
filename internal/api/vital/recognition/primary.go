package vitalRecognition

import (
	"context"
	"fmt"

	"eldercare-vitals/internal/entity"
	"eldercare-vitals/pkg/digits"
	"eldercare-vitals/pkg/log"
	"eldercare-vitals/pkg/utils"

	"github.com/sirupsen/logrus"
)

type Recognizer interface {
	Recognize(ctx context.Context, img *utils.DecodedImage) (entity.PartialMeasurement, error)
}

type primaryRecognizer struct {
	models    *Models
	threshold float64
	log       *logrus.Logger
}

func NewPrimaryRecognizer(models *Models, threshold float64, log *logrus.Logger) Recognizer {
	return &primaryRecognizer{
		models:    models,
		threshold: threshold,
		log:       log,
	}
}

// Recognize returns whatever fields it could read. Fields that were not detected or not
// readable are simply absent; an error means the models themselves could not run.
func (p *primaryRecognizer) Recognize(ctx context.Context, img *utils.DecodedImage) (entity.PartialMeasurement, error) {
	set, err := p.models.Get()
	if err != nil {
		return nil, err
	}

	boxes, err := set.Detector.DetectRegions(ctx, img.Raw)
	if err != nil {
		return nil, fmt.Errorf("detect regions: %w", err)
	}

	entry := log.WithContext(p.log, ctx)
	selected := SelectRegions(boxes, p.threshold)
	partial := make(entity.PartialMeasurement, len(selected))

	for _, field := range entity.VitalFields {
		box, ok := selected[field]
		if !ok {
			continue
		}

		crop, err := digits.Crop(img.Image, box.Box)
		if err != nil {
			entry.WithFields(logrus.Fields{"field": field, "error": err.Error()}).Debug("Region outside image")
			continue
		}

		value, err := set.Reader.ReadDigits(ctx, crop)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return partial, ctxErr
			}
			entry.WithFields(logrus.Fields{"field": field, "error": err.Error()}).Debug("Digits not readable")
			continue
		}
		partial[field] = value
	}

	entry.WithFields(logrus.Fields{
		"detections": len(boxes),
		"selected":   len(selected),
		"read":       len(partial),
	}).Debug("Primary recognition finished")

	return partial, nil
}

// SelectRegions keeps, per label, the most confident box strictly above threshold.
func SelectRegions(boxes []entity.RegionBox, threshold float64) map[entity.VitalField]entity.RegionBox {
	best := make(map[entity.VitalField]entity.RegionBox, len(entity.VitalFields))
	for _, box := range boxes {
		if box.Confidence <= threshold {
			continue
		}
		if current, ok := best[box.Label]; !ok || box.Confidence > current.Confidence {
			best[box.Label] = box
		}
	}
	return best
}
