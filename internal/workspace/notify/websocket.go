package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"codearena/internal/workspace/model"
	"codearena/pkg/utils/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketConfig holds the client settings of a relay connection.
type WebSocketConfig struct {
	URL            string
	Header         http.Header
	HandshakeTime  time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func (c *WebSocketConfig) applyDefaults() {
	if c.HandshakeTime <= 0 {
		c.HandshakeTime = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 << 10
	}
}

// WebSocketChannel multiplexes every topic of this process over one relay connection.
type WebSocketChannel struct {
	config WebSocketConfig
	conn   *websocket.Conn
	subs   *subscribers

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// DialWebSocket connects to a relay and starts reading events.
func DialWebSocket(ctx context.Context, cfg WebSocketConfig) (*WebSocketChannel, error) {
	if cfg.URL == "" {
		return nil, errors.New("relay url is required")
	}
	cfg.applyDefaults()
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTime}
	conn, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial relay failed: %w", err)
	}
	conn.SetReadLimit(cfg.MaxMessageSize)

	c := &WebSocketChannel{
		config: cfg,
		conn:   conn,
		subs:   newSubscribers(),
		done:   make(chan struct{}),
	}
	go c.readPump()
	go c.pingPump()
	return c, nil
}

// Publish sends the event to the relay and hands it to local subscribers of the topic;
// the relay does not echo a publish back to its sender.
func (c *WebSocketChannel) Publish(ctx context.Context, topic string, event model.MatchEvent) error {
	if err := c.write(frame{Op: opPublish, Topic: topic, Event: &event}); err != nil {
		return err
	}
	c.subs.deliver(ctx, topic, event)
	return nil
}

func (c *WebSocketChannel) Subscribe(ctx context.Context, topic string, handler Handler) (func(), error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	id, first := c.subs.add(topic, handler)
	if first {
		if err := c.write(frame{Op: opSubscribe, Topic: topic}); err != nil {
			c.subs.remove(topic, id)
			return nil, err
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if c.subs.remove(topic, id) {
				if err := c.write(frame{Op: opUnsubscribe, Topic: topic}); err != nil {
					logger.Debug(context.Background(), "relay unsubscribe failed", zap.String("topic", topic), zap.Error(err))
				}
			}
		})
	}, nil
}

// Done is closed once the relay connection is gone.
func (c *WebSocketChannel) Done() <-chan struct{} {
	return c.done
}

func (c *WebSocketChannel) Close() error {
	var err error
	c.once.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
		c.subs.clear()
		close(c.done)
	})
	return err
}

func (c *WebSocketChannel) write(f frame) error {
	select {
	case <-c.done:
		return errors.New("channel is closed")
	default:
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame failed: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame failed: %w", err)
	}
	return nil
}

func (c *WebSocketChannel) readPump() {
	defer func() { _ = c.Close() }()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn(context.Background(), "relay connection lost", zap.Error(err))
			}
			return
		}
		var f frame
		if err := json.Unmarshal(message, &f); err != nil || f.Op != opEvent || f.Event == nil {
			logger.Debug(context.Background(), "ignore relay frame", zap.ByteString("frame", message))
			continue
		}
		c.subs.deliver(context.Background(), f.Topic, *f.Event)
	}
}

func (c *WebSocketChannel) pingPump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
