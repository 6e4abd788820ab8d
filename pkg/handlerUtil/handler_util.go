package handlerUtil

import (
	"errors"

	"eldercare-vitals/internal/api/vital"
	contextPkg "eldercare-vitals/pkg/context"
	"eldercare-vitals/pkg/log"
	"eldercare-vitals/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}
	if subjectID := contextPkg.GetSubjectID(c.UserContext()); subjectID != "" {
		fields["subject_id"] = subjectID
	}

	// Internal-only parse failures are reported the same way as any failed recognition.
	if errors.Is(err, vital.ErrFallbackParse) {
		err = vital.ErrRecognitionFailed
	}

	if respErr, ok := response.As(err); ok && respErr.Code < fiber.StatusInternalServerError {
		fields["code"] = respErr.Code
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(ErrorResponse{Error: respErr.Err.Error()})
	}

	traceID := log.ErrorWithTraceID(h.logger, fields, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   vital.ErrInternal.Error(),
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "ValidationError"})
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "Unauthorized"})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
