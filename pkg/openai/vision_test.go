package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeImage_SendsNearZeroTemperature(t *testing.T) {
	var sent map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &sent)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"SYS=120 DIA=80 PULSE=72"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", srv.URL+"/v1")
	t.Setenv("OPENAI_VISION_MODEL", "")

	vision, err := NewVision()
	require.NoError(t, err)

	text, err := vision.AnalyzeImage(context.Background(), "AAAA", "image/png", "read the meter", "values?")
	require.NoError(t, err)
	assert.Equal(t, "SYS=120 DIA=80 PULSE=72", text)

	require.Contains(t, sent, "temperature")
	assert.InDelta(t, nearZeroTemperature, sent["temperature"], 1e-9)
	assert.Equal(t, "gpt-4o-mini", sent["model"])
}

func TestNewVision_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewVision()
	assert.Error(t, err)
}
