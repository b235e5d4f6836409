package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"OutSift/internal/domain/models"
	drepo "OutSift/internal/domain/repository"
	"OutSift/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements an ObservationStream backed by a WebSocket feed. Each
// frame carries one feature vector, plus the delayed truth label for the
// previous observation once its outcome is known upstream.
type Client struct {
	logger         *logger.Logger
	websocketURL   string
	token          string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a WebSocket-backed ObservationStream.
func New(lgr *logger.Logger, websocketURL, token string, reconnectDelay, pingInterval time.Duration) drepo.ObservationStream {
	return &Client{
		logger:         lgr,
		websocketURL:   websocketURL,
		token:          token,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.token != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.logger.Info("stream connected", logger.String("url", c.websocketURL))
	return nil
}

type wsFrame struct {
	Type  string    `json:"type"`
	X     []float64 `json:"x"`
	Truth *int      `json:"truth"`
}

// Read streams observation events and errors. Frames without a feature vector
// (heartbeats, acks) are skipped.
func (c *Client) Read(ctx context.Context) (<-chan *models.StreamEvent, <-chan error) {
	events := make(chan *models.StreamEvent, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var f wsFrame
				if err := json.Unmarshal(b, &f); err != nil {
					// ignore non-observation frames
					continue
				}
				if len(f.X) == 0 {
					continue
				}
				ev := &models.StreamEvent{X: f.X, Truth: f.Truth}
				select {
				case events <- ev:
				default:
					c.logger.Warn("stream buffer full, dropping frame")
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
