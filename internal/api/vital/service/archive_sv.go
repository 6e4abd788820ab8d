package vitalService

import (
	"context"
	"fmt"

	"eldercare-vitals/internal/entity"
	"eldercare-vitals/pkg/utils"

	"github.com/sirupsen/logrus"
)

func archiveKey(reading entity.VitalReading, ext string) string {
	return fmt.Sprintf("bp-meter/%s/%s/%s-%s.%s", reading.SubjectID, reading.LocalDate, reading.Period, reading.ID, ext)
}

// archivePhoto keeps a copy of the accepted photo. Failures are logged only.
func (s *vitalService) archivePhoto(ctx context.Context, reading entity.VitalReading, img *utils.DecodedImage, entry *logrus.Entry) {
	if s.archive == nil {
		return
	}

	key := archiveKey(reading, img.Extension())
	location, err := s.archive.UploadImage(ctx, key, img.Raw, img.MIMEType())
	if err != nil {
		entry.WithFields(logrus.Fields{
			"stage": "archive",
			"key":   key,
			"error": err.Error(),
		}).Warn("Failed to archive capture photo")
		return
	}

	entry.WithFields(logrus.Fields{"stage": "archive", "location": location}).Debug("Capture photo archived")
}
