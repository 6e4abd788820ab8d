package websocketPkg

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"eldercare-vitals/internal/entity"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("not connected to meter detection service")

type IWebsocket interface {
	DetectRegions(ctx context.Context, frame []byte) ([]entity.RegionBox, error)
	IsConnected() bool
	Reconnect() error
	CloseConnections()
}

type webSocketClient struct {
	url          string
	conn         *websocket.Conn
	mu           sync.Mutex
	reqMu        sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *logrus.Logger
}

func NewMeterDetectionClient(log *logrus.Logger) IWebsocket {
	client := newClient(getWebSocketURL(), log)
	go client.connectInBackground()
	return client
}

func newClient(url string, log *logrus.Logger) *webSocketClient {
	return &webSocketClient{
		url:          url,
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
		log:          log,
	}
}

func (c *webSocketClient) connectInBackground() {
	if err := c.Reconnect(); err != nil {
		c.log.WithFields(logrus.Fields{
			"url":   c.url,
			"error": err.Error(),
		}).Warn("Initial connection to meter detection failed, will retry on demand")
		return
	}
	c.log.WithField("url", c.url).Info("Connected to meter detection service")
}

func (c *webSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *webSocketClient) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if c.url == "" {
		return fmt.Errorf("meter detection URL not configured")
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout)); err != nil {
			c.log.WithField("error", err.Error()).Debug("Error sending pong")
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *webSocketClient) CloseConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *webSocketClient) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.WithField("error", err.Error()).Warn("Ping failed for meter detection, marking connection as dead")
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

func (c *webSocketClient) getConnection() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *webSocketClient) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

// DetectRegions sends one frame and waits for its detections. Requests are serialized
// because the service answers frames in order on a single connection.
func (c *webSocketClient) DetectRegions(ctx context.Context, frame []byte) ([]entity.RegionBox, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := c.getConnection()
	if err != nil {
		if err := c.Reconnect(); err != nil {
			return nil, fmt.Errorf("cannot connect to meter detection service: %w", err)
		}
		if conn, err = c.getConnection(); err != nil {
			return nil, err
		}
	}

	payload := base64.StdEncoding.EncodeToString(frame)

	_ = conn.SetWriteDeadline(c.deadline(ctx, c.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		c.dropConnection(conn)
		return nil, fmt.Errorf("error sending meter frame: %w", err)
	}

	_ = conn.SetReadDeadline(c.deadline(ctx, c.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.dropConnection(conn)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("error reading meter message: %w", err)
	}

	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	var result entity.MeterDetectionResult
	if err := jsoniter.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling meter response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("meter detection service: %s", result.Error)
	}

	c.log.WithFields(logrus.Fields{
		"frame_bytes": len(frame),
		"detections":  len(result.Detections),
	}).Debug("Received response from meter detection service")

	return toRegionBoxes(result.Detections), nil
}

func (c *webSocketClient) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// toRegionBoxes keeps detections with a known label and a four-value box.
func toRegionBoxes(items []entity.MeterDetectionItem) []entity.RegionBox {
	boxes := make([]entity.RegionBox, 0, len(items))
	for _, item := range items {
		label := entity.VitalField(strings.ToLower(strings.TrimSpace(item.Label)))
		if _, known := entity.PlausibleBands[label]; !known || len(item.BBox) != 4 {
			continue
		}

		rect := image.Rect(
			int(math.Floor(item.BBox[0])),
			int(math.Floor(item.BBox[1])),
			int(math.Ceil(item.BBox[2])),
			int(math.Ceil(item.BBox[3])),
		)
		if rect.Empty() {
			continue
		}

		boxes = append(boxes, entity.RegionBox{
			Label:      label,
			Confidence: item.Confidence,
			Box:        rect,
		})
	}
	return boxes
}

func getWebSocketURL() string {
	url := os.Getenv("AI_METER_DETECTION_URL")
	if url == "" {
		url = "ws://localhost:8000/api/v1/bp-meter/ws"
	}
	return url
}
