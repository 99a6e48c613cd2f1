package notify

import (
	"context"
	"errors"
	"sync"

	"codearena/internal/workspace/model"
)

// MemoryHub delivers events in-process and synchronously. It backs single-process play and tests.
type MemoryHub struct {
	subs *subscribers

	mu     sync.RWMutex
	closed bool
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: newSubscribers()}
}

func (h *MemoryHub) Publish(ctx context.Context, topic string, event model.MatchEvent) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return errors.New("channel is closed")
	}
	h.subs.deliver(ctx, topic, event)
	return nil
}

func (h *MemoryHub) Subscribe(ctx context.Context, topic string, handler Handler) (func(), error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, errors.New("channel is closed")
	}
	id, _ := h.subs.add(topic, handler)
	var once sync.Once
	return func() {
		once.Do(func() { h.subs.remove(topic, id) })
	}, nil
}

func (h *MemoryHub) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.subs.clear()
	return nil
}
