package vitalHandler

import (
	vitalService "eldercare-vitals/internal/api/vital/service"
	"eldercare-vitals/internal/middleware"
	"eldercare-vitals/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type VitalHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	vitalService vitalService.IVitalService
	utils        utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	vs vitalService.IVitalService,
	utils utils.IUtils,
) *VitalHandler {
	return &VitalHandler{
		log:          log,
		validator:    validator,
		middleware:   middleware,
		vitalService: vs,
		utils:        utils,
	}
}

func (h *VitalHandler) Start(srv fiber.Router) {
	bp := srv.Group("/vitals/blood-pressure")
	bp.Post("/capture", h.middleware.NewRateLimiter, h.middleware.NewTokenMiddleware, h.Capture)
	bp.Get("/by-date", h.middleware.NewTokenMiddleware, h.GetDayView)

	// Path used by existing mobile clients.
	srv.Post("/ocrblood", h.middleware.NewRateLimiter, h.middleware.NewTokenMiddleware, h.Capture)
}
