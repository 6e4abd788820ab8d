package middleware

import (
	"strings"
	"time"

	"eldercare-vitals/pkg/log"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func LoggerConfig(logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, ok := c.Locals(RequestIDKey).(string)
		if !ok || requestID == "" {
			requestID = "unknown"
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		logFields := log.Fields{
			"request_id":    requestID,
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get("User-Agent"),
			"response_size": len(c.Response().Body()),
		}

		if body := c.Request().Body(); len(body) > 0 {
			logFields["request_body"] = sanitizeRequestBody(string(c.Request().Header.ContentType()), body)
		}

		entry := logger.WithFields(logFields)
		switch {
		case status >= 500:
			entry.Error("Server error")
		case status >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Success")
		}

		return err
	}
}

var sensitiveFields = []string{
	"password", "token", "secret", "key", "auth",
	"credential", "authorization",
	"image", "image_base64", "imagebase64", "photo",
}

func sanitizeRequestBody(contentType string, body []byte) string {
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return "[multipart body]"
	}

	var jsonBody map[string]interface{}
	if err := jsoniter.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	for name := range jsonBody {
		lower := strings.ToLower(name)
		for _, field := range sensitiveFields {
			if lower == field {
				jsonBody[name] = "[REDACTED]"
				break
			}
		}
	}

	sanitized, err := jsoniter.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	return string(sanitized)
}
