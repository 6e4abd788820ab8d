package handlerUtil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"eldercare-vitals/internal/api/vital"
	logPkg "eldercare-vitals/pkg/log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHandle(t *testing.T, err error) (int, string) {
	t.Helper()
	h := New(logPkg.NewTestLogger())

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return h.Handle(c, "req-1", err, c.Path(), "test")
	})

	resp, testErr := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, testErr)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHandleDomainErrors(t *testing.T) {
	code, body := runHandle(t, vital.ErrInvalidImage)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"ok":false,"error":"InvalidImage"}`, body)

	code, body = runHandle(t, fmt.Errorf("fallback: %w", vital.ErrRecognitionFailed))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.JSONEq(t, `{"ok":false,"error":"RecognitionFailed"}`, body)
}

func TestHandleFallbackParseReportedAsRecognitionFailed(t *testing.T) {
	code, body := runHandle(t, fmt.Errorf("only 2 integers: %w", vital.ErrFallbackParse))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.JSONEq(t, `{"ok":false,"error":"RecognitionFailed"}`, body)
}

func TestHandleInfraError(t *testing.T) {
	code, body := runHandle(t, errors.New("connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.JSONEq(t, `{"ok":false,"error":"InternalError","trace_id":"req-1"}`, body)
	assert.NotContains(t, body, "connection refused")
}

func TestHandleInfraErrorWithoutRequestIDGetsTraceID(t *testing.T) {
	h := New(logPkg.NewTestLogger())

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return h.Handle(c, "unknown", errors.New("disk full"), c.Path(), "test")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "InternalError", body.Error)
	_, parseErr := uuid.Parse(body.TraceID)
	assert.NoError(t, parseErr)
}
