package vitalService

import (
	"context"

	"eldercare-vitals/internal/api/vital"
	vitalRecognition "eldercare-vitals/internal/api/vital/recognition"
	vitalRepository "eldercare-vitals/internal/api/vital/repository"
	"eldercare-vitals/pkg/redis"
	"eldercare-vitals/pkg/s3"
	"eldercare-vitals/pkg/utils"

	"github.com/sirupsen/logrus"
)

type IVitalService interface {
	Capture(ctx context.Context, in vital.CaptureInput) (vital.CaptureResult, error)
	GetDayView(ctx context.Context, viewerID, subjectID, date string) (vital.DayView, error)
}

// VisionModel is a general image model that answers a prompt about an image with free text.
type VisionModel interface {
	AnalyzeImage(ctx context.Context, base64Image, mimeType, instruction, prompt string) (string, error)
}

type vitalService struct {
	log             *logrus.Logger
	vitalRepository vitalRepository.Repository
	primary         vitalRecognition.Recognizer
	fallback        VisionModel
	cache           redis.IRedis
	archive         s3.ItfS3
	utils           utils.IUtils
	visibility      vital.Visibility
	settings        vital.Settings
}

// NewVitalService wires the capture pipeline. cache and archive may be nil; a nil
// visibility means subjects only see their own readings.
func NewVitalService(
	log *logrus.Logger,
	vr vitalRepository.Repository,
	primary vitalRecognition.Recognizer,
	fallback VisionModel,
	cache redis.IRedis,
	archive s3.ItfS3,
	utils utils.IUtils,
	visibility vital.Visibility,
	settings vital.Settings,
) IVitalService {
	if visibility == nil {
		visibility = vital.SelfOnly{}
	}
	return &vitalService{
		log:             log,
		vitalRepository: vr,
		primary:         primary,
		fallback:        fallback,
		cache:           cache,
		archive:         archive,
		utils:           utils,
		visibility:      visibility,
		settings:        settings,
	}
}
