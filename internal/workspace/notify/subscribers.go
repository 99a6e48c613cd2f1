package notify

import (
	"context"
	"sync"

	"codearena/internal/workspace/model"
)

// subscribers is the local handler registry shared by every channel implementation.
type subscribers struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string]map[uint64]*subscription
}

type subscription struct {
	handler Handler

	// mu is held while the handler runs so cancel can wait out an in-flight delivery.
	mu     sync.Mutex
	closed bool
}

func newSubscribers() *subscribers {
	return &subscribers{topics: make(map[string]map[uint64]*subscription)}
}

// add registers a handler and reports whether it is the first one on the topic.
func (s *subscribers) add(topic string, handler Handler) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	subs, ok := s.topics[topic]
	if !ok {
		subs = make(map[uint64]*subscription)
		s.topics[topic] = subs
	}
	subs[id] = &subscription{handler: handler}
	return id, !ok
}

// remove unregisters a handler and reports whether the topic has no handlers left.
// It waits for an in-flight delivery to that handler to finish.
func (s *subscribers) remove(topic string, id uint64) bool {
	s.mu.Lock()
	subs := s.topics[topic]
	sub, ok := subs[id]
	if ok {
		delete(subs, id)
	}
	last := ok && len(subs) == 0
	if last {
		delete(s.topics, topic)
	}
	s.mu.Unlock()

	if ok {
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()
	}
	return last
}

func (s *subscribers) deliver(ctx context.Context, topic string, event model.MatchEvent) int {
	s.mu.RLock()
	targets := make([]*subscription, 0, len(s.topics[topic]))
	for _, sub := range s.topics[topic] {
		targets = append(targets, sub)
	}
	s.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		sub.mu.Lock()
		if !sub.closed {
			sub.handler(ctx, event)
			delivered++
		}
		sub.mu.Unlock()
	}
	return delivered
}

func (s *subscribers) topicList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	return topics
}

func (s *subscribers) clear() {
	s.mu.Lock()
	all := s.topics
	s.topics = make(map[string]map[uint64]*subscription)
	s.mu.Unlock()
	for _, subs := range all {
		for _, sub := range subs {
			sub.mu.Lock()
			sub.closed = true
			sub.mu.Unlock()
		}
	}
}
