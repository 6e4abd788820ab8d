package websocketPkg

import (
	"context"
	"encoding/base64"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eldercare-vitals/internal/entity"
	logPkg "eldercare-vitals/pkg/log"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMeterServer(t *testing.T, reply func(frame []byte) string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := base64.StdEncoding.DecodeString(string(msg))
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply(frame))); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDetectRegions(t *testing.T) {
	srv := newMeterServer(t, func(frame []byte) string {
		return `{"message":"ok","detections":[
			{"label":"systolic","conf":0.93,"bbox":[10.2,20.7,110.4,80.1]},
			{"label":"Pulse","conf":0.71,"bbox":[5,90,60,120]},
			{"label":"battery","conf":0.99,"bbox":[0,0,5,5]},
			{"label":"diastolic","conf":0.88,"bbox":[1,2]}
		]}`
	})

	client := newClient(wsURL(srv), logPkg.NewTestLogger())
	defer client.CloseConnections()

	boxes, err := client.DetectRegions(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	require.Len(t, boxes, 2)

	assert.Equal(t, entity.FieldSystolic, boxes[0].Label)
	assert.Equal(t, image.Rect(10, 20, 111, 81), boxes[0].Box)
	assert.InDelta(t, 0.93, boxes[0].Confidence, 1e-9)
	assert.Equal(t, entity.FieldPulse, boxes[1].Label)
	assert.True(t, client.IsConnected())
}

func TestDetectRegionsServiceError(t *testing.T) {
	srv := newMeterServer(t, func(frame []byte) string {
		return `{"message":"failed","error":"model not loaded"}`
	})

	client := newClient(wsURL(srv), logPkg.NewTestLogger())
	defer client.CloseConnections()

	_, err := client.DetectRegions(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestDetectRegionsUnreachable(t *testing.T) {
	client := newClient("ws://127.0.0.1:1/unreachable", logPkg.NewTestLogger())

	_, err := client.DetectRegions(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.False(t, client.IsConnected())
}

func TestDetectRegionsCanceled(t *testing.T) {
	srv := newMeterServer(t, func(frame []byte) string {
		time.Sleep(500 * time.Millisecond)
		return `{"message":"ok","detections":[]}`
	})

	client := newClient(wsURL(srv), logPkg.NewTestLogger())
	defer client.CloseConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.DetectRegions(ctx, []byte("x"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
