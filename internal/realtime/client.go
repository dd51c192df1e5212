package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/allballa/dental-scheduler/pkg/logging"
)

// ErrTimeout is returned by Next when no event arrives in time. The
// connection stays usable; callers decide whether to keep waiting.
var ErrTimeout = errors.New("realtime: receive timed out")

// ErrClosed is returned by Next once the connection is shut down.
var ErrClosed = errors.New("realtime: connection closed")

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

// DialConfig controls how the model connection is established.
type DialConfig struct {
	URL        string
	APIKey     string
	MaxRetries int
	RetryDelay time.Duration
}

// Conn is one live connection to the model. A background pump owns
// all reads; writes from multiple goroutines are serialized.
type Conn struct {
	ws     *websocket.Conn
	logger *logging.Logger

	writeMu sync.Mutex

	events    chan *Event
	readErr   chan error
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the realtime endpoint, retrying failed attempts
// with a fixed delay.
func Dial(ctx context.Context, cfg DialConfig, logger *logging.Logger) (*Conn, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("realtime: api key missing")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		ws, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			c := &Conn{
				ws:      ws,
				logger:  logger,
				events:  make(chan *Event, 16),
				readErr: make(chan error, 1),
				done:    make(chan struct{}),
			}
			ws.SetReadLimit(maxMessageSize)
			go c.readPump()
			return c, nil
		}
		lastErr = err
		logger.Warn("model connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.MaxRetries,
			"error", err)
		if attempt < cfg.MaxRetries {
			select {
			case <-time.After(cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("realtime: dial after %d attempts: %w", cfg.MaxRetries, lastErr)
}

// readPump owns the websocket read side and feeds decoded events to
// Next. It exits on the first read error.
func (c *Conn) readPump() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.readErr <- err
			return
		}
		event, err := ParseEvent(data)
		if err != nil {
			c.logger.Warn("skipping undecodable model event", "error", err)
			continue
		}
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

// Next returns the next server event, waiting at most timeout. A
// closed connection surfaces the read error.
func (c *Conn) Next(timeout time.Duration) (*Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case event, ok := <-c.events:
		if !ok {
			select {
			case err := <-c.readErr:
				return nil, err
			default:
				return nil, ErrClosed
			}
		}
		return event, nil
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Send marshals and writes one command.
func (c *Conn) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("realtime: send: %w", err)
	}
	return nil
}

// Ping probes connection liveness after a receive timeout.
func (c *Conn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("realtime: ping: %w", err)
	}
	return nil
}

// Close shuts the websocket down. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
