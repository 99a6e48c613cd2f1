package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"codearena/internal/common/mq"
	"codearena/internal/workspace/model"
	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const headerChannelTopic = "x-channel-topic"

// KafkaChannelConfig maps channel topics onto one broker topic.
type KafkaChannelConfig struct {
	// Topic is the broker topic carrying every match event.
	Topic string
	// GroupPrefix names consumer groups; each subscription gets its own group so it sees every event.
	GroupPrefix string
	// EventTTL drops events older than this on arrival.
	EventTTL time.Duration
}

// KafkaChannel carries match events over a message queue. Channel topics such as
// match:{id} travel as a header and are filtered on the consuming side.
type KafkaChannel struct {
	queue  mq.MessageQueue
	config KafkaChannelConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	closed  bool
}

func NewKafkaChannel(queue mq.MessageQueue, cfg KafkaChannelConfig) (*KafkaChannel, error) {
	if queue == nil {
		return nil, errors.New("message queue is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "codearena.match-events"
	}
	if cfg.GroupPrefix == "" {
		cfg.GroupPrefix = "codearena-match"
	}
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = 10 * time.Minute
	}
	return &KafkaChannel{queue: queue, config: cfg, cancels: make(map[string]context.CancelFunc)}, nil
}

func (k *KafkaChannel) Publish(ctx context.Context, topic string, event model.MatchEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal match event failed: %w", err)
	}
	msg := mq.NewMessage(body)
	msg.ID = event.ID
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if !event.SentAt.IsZero() {
		msg.Timestamp = event.SentAt
	}
	msg.Expiration = k.config.EventTTL
	msg.SetHeader(headerChannelTopic, topic)
	return k.queue.Publish(ctx, k.config.Topic, msg)
}

func (k *KafkaChannel) Subscribe(ctx context.Context, topic string, handler Handler) (func(), error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil, errors.New("channel is closed")
	}
	subID := uuid.NewString()
	subCtx, cancel := context.WithCancel(context.Background())
	k.cancels[subID] = cancel
	k.mu.Unlock()

	var (
		deliverMu sync.Mutex
		done      bool
	)
	err := k.queue.SubscribeWithOptions(subCtx, k.config.Topic, func(ctx context.Context, msg *mq.Message) error {
		if t, _ := msg.GetHeader(headerChannelTopic); t != topic {
			return nil
		}
		var event model.MatchEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			logger.Warn(ctx, "drop malformed match event", zap.String("topic", topic), zap.Error(err))
			return nil
		}
		deliverMu.Lock()
		defer deliverMu.Unlock()
		if !done {
			handler(ctx, event)
		}
		return nil
	}, &mq.SubscribeOptions{
		ConsumerGroup: k.config.GroupPrefix + "-" + subID,
		MessageTTL:    k.config.EventTTL,
	})
	if err != nil {
		k.release(subID)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			deliverMu.Lock()
			done = true
			deliverMu.Unlock()
			k.release(subID)
		})
	}, nil
}

func (k *KafkaChannel) release(subID string) {
	k.mu.Lock()
	cancel, ok := k.cancels[subID]
	delete(k.cancels, subID)
	k.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close ends every subscription and closes the underlying queue.
func (k *KafkaChannel) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	cancels := k.cancels
	k.cancels = make(map[string]context.CancelFunc)
	k.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	return k.queue.Close()
}
