package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RelayConfig holds configuration for relay connections.
type RelayConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultRelayConfig returns default relay settings.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 << 10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      64,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// Relay is the server side of WebSocketChannel: it fans published frames out to every
// connection subscribed to the frame's topic.
type Relay struct {
	config   RelayConfig
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	topics map[string]map[*relayConn]struct{}
}

type relayConn struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	relay  *Relay
	topics map[string]struct{}
	once   sync.Once
}

func NewRelay(config RelayConfig) *Relay {
	return &Relay{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		topics: make(map[string]map[*relayConn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves one relay connection.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Warn(req.Context(), "upgrade relay connection failed", zap.Error(err))
		return
	}
	c := &relayConn{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, r.config.SendBuffer),
		relay:  r,
		topics: make(map[string]struct{}),
	}
	logger.Debug(req.Context(), "relay connection established", zap.String("connection_id", c.id))
	go c.writePump()
	go c.readPump()
}

// Subscribers returns the number of connections subscribed to topic.
func (r *Relay) Subscribers(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

func (r *Relay) subscribe(c *relayConn, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.topics[topic]
	if !ok {
		conns = make(map[*relayConn]struct{})
		r.topics[topic] = conns
	}
	conns[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

func (r *Relay) unsubscribe(c *relayConn, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(c, topic)
}

func (r *Relay) unsubscribeLocked(c *relayConn, topic string) {
	if conns, ok := r.topics[topic]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(r.topics, topic)
		}
	}
	delete(c.topics, topic)
}

func (r *Relay) unregister(c *relayConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic := range c.topics {
		r.unsubscribeLocked(c, topic)
	}
	c.once.Do(func() { close(c.send) })
}

// broadcast fans a published event out to every subscriber of its topic except the sender.
func (r *Relay) broadcast(from *relayConn, f frame) {
	data, err := json.Marshal(frame{Op: opEvent, Topic: f.Topic, Event: f.Event})
	if err != nil {
		logger.Error(context.Background(), "marshal relay event failed", zap.Error(err))
		return
	}
	// Sends never block, so the read lock also keeps send channels open while in use.
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.topics[f.Topic] {
		if c == from {
			continue
		}
		select {
		case c.send <- data:
		default:
			logger.Warn(context.Background(), "relay send buffer full, closing connection", zap.String("connection_id", c.id))
			_ = c.conn.Close()
		}
	}
}

func (c *relayConn) readPump() {
	defer func() {
		c.relay.unregister(c)
		_ = c.conn.Close()
	}()

	cfg := c.relay.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})
	c.conn.SetPingHandler(func(appData string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(cfg.WriteTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn(context.Background(), "unexpected relay close", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		var f frame
		if err := json.Unmarshal(message, &f); err != nil || f.Topic == "" {
			logger.Debug(context.Background(), "drop malformed relay frame", zap.String("connection_id", c.id))
			continue
		}
		switch f.Op {
		case opSubscribe:
			c.relay.subscribe(c, f.Topic)
		case opUnsubscribe:
			c.relay.unsubscribe(c, f.Topic)
		case opPublish:
			if f.Event != nil {
				c.relay.broadcast(c, f)
			}
		}
	}
}

func (c *relayConn) writePump() {
	cfg := c.relay.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
