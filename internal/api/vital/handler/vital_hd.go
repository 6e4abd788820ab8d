package vitalHandler

import (
	"fmt"
	"strconv"
	"strings"

	"eldercare-vitals/internal/api/vital"
	contextPkg "eldercare-vitals/pkg/context"
	"eldercare-vitals/pkg/handlerUtil"
	jwtPkg "eldercare-vitals/pkg/jwt"
	"eldercare-vitals/pkg/log"

	"github.com/gofiber/fiber/v2"
)

func (h *VitalHandler) Capture(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	user, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "missing subject identity")
	}

	c := contextPkg.WithSubjectID(contextPkg.FromFiberCtx(ctx), user.ID)
	in := vital.CaptureInput{SubjectID: user.ID}

	if form, err := ctx.MultipartForm(); err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
		}).Debug("Processing multipart capture")

		if files := form.File["image"]; len(files) > 0 {
			data, err := h.utils.ReadFormFile(files[0])
			if err != nil {
				return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", vital.ErrInvalidImage, err), ctx.Path(), "read_image_file")
			}
			in.ImageBytes = data
		}

		in.ImageBase64 = ctx.FormValue("image_base64")
		in.Timestamp = ctx.FormValue("timestamp")
		in.Timezone = ctx.FormValue("tz")
		if raw := strings.TrimSpace(ctx.FormValue("epoch_ms")); raw != "" {
			if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
				in.EpochMillis = &ms
			}
		}
	} else {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
		}).Debug("Processing JSON capture")

		var req vital.CaptureRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", vital.ErrInvalidImage, err), ctx.Path(), "parse_request_body")
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		in.ImageBase64 = req.ImageBase64
		in.Timestamp = req.Timestamp
		in.Timezone = req.Timezone
		in.EpochMillis = req.EpochMillis
	}

	result, err := h.vitalService.Capture(c, in)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "capture_vital_reading")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"subject_id": user.ID,
		"source":     result.Source,
		"created":    result.Created,
	}).Info("Vital reading captured")

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}

	return errHandler.HandleSuccess(ctx, status, vital.NewCaptureResponse(result))
}

func (h *VitalHandler) GetDayView(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	user, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "missing subject identity")
	}

	var query vital.DayViewQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	subjectID := user.ID
	if query.UserID != "" {
		subjectID = query.UserID
	}

	c := contextPkg.WithSubjectID(contextPkg.FromFiberCtx(ctx), user.ID)
	view, err := h.vitalService.GetDayView(c, user.ID, subjectID, query.Date)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_day_view")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, view)
}
