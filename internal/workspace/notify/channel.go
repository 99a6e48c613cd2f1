// Package notify carries match events between participants over a pluggable channel.
package notify

import (
	"context"

	"codearena/internal/workspace/model"
)

// Handler receives events published on a subscribed topic.
type Handler func(ctx context.Context, event model.MatchEvent)

// Channel is a topic based pub/sub transport for match events.
// The cancel func returned by Subscribe is idempotent and no event reaches the handler after it returns.
// A handler must not cancel its own subscription.
type Channel interface {
	Publish(ctx context.Context, topic string, event model.MatchEvent) error
	Subscribe(ctx context.Context, topic string, handler Handler) (func(), error)
	Close() error
}

// MatchTopic is the channel topic of a match.
func MatchTopic(matchID string) string {
	return "match:" + matchID
}

type frameOp string

const (
	opSubscribe   frameOp = "subscribe"
	opUnsubscribe frameOp = "unsubscribe"
	opPublish     frameOp = "publish"
	opEvent       frameOp = "event"
)

// frame is the JSON envelope exchanged with a relay.
type frame struct {
	Op    frameOp           `json:"op"`
	Topic string            `json:"topic"`
	Event *model.MatchEvent `json:"event,omitempty"`
}
