package service

import (
	"context"
	"sync"

	"codearena/internal/workspace/model"
	"codearena/internal/workspace/notify"
	apperrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// NotificationBridge connects a match session to its channel topic. It only ever
// raises the opponent-submitted flag and never drives submission logic.
type NotificationBridge struct {
	channel notify.Channel
	clock   clockwork.Clock
}

func NewNotificationBridge(channel notify.Channel, clock clockwork.Clock) *NotificationBridge {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NotificationBridge{channel: channel, clock: clock}
}

// Subscription is a live bridge subscription. Close is idempotent.
type Subscription struct {
	cancel func()

	mu     sync.Mutex
	closed bool
}

func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Subscription) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Subscribe listens on the match topic and calls onOpponentSubmitted for every
// submitted event sent by another participant.
func (b *NotificationBridge) Subscribe(ctx context.Context, match model.Match, onOpponentSubmitted func()) (*Subscription, error) {
	sub := &Subscription{}
	cancel, err := b.channel.Subscribe(ctx, notify.MatchTopic(match.MatchID), func(ctx context.Context, event model.MatchEvent) {
		if !sub.active() {
			return
		}
		if event.Type != model.MatchEventSubmitted || event.ParticipantID == match.ParticipantID {
			return
		}
		if event.MatchID != "" && event.MatchID != match.MatchID {
			return
		}
		onOpponentSubmitted()
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ChannelSubscribeFailed, "subscribe match %s failed", match.MatchID)
	}
	sub.cancel = cancel
	return sub, nil
}

// PublishSubmitted tells the opponent this participant has submitted.
func (b *NotificationBridge) PublishSubmitted(ctx context.Context, match model.Match) error {
	return b.publish(ctx, match, model.MatchEventSubmitted)
}

// PublishGaveUp tells the opponent this participant has given up.
func (b *NotificationBridge) PublishGaveUp(ctx context.Context, match model.Match) error {
	return b.publish(ctx, match, model.MatchEventGaveUp)
}

func (b *NotificationBridge) publish(ctx context.Context, match model.Match, eventType model.MatchEventType) error {
	event := model.MatchEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		MatchID:       match.MatchID,
		ParticipantID: match.ParticipantID,
		SentAt:        b.clock.Now().UTC(),
	}
	if err := b.channel.Publish(ctx, notify.MatchTopic(match.MatchID), event); err != nil {
		logger.Warn(ctx, "publish match event failed",
			zap.String("match_id", match.MatchID),
			zap.String("type", string(eventType)),
			zap.Error(err),
		)
		return apperrors.Wrapf(err, apperrors.ChannelPublishFailed, "publish %s to match %s failed", eventType, match.MatchID)
	}
	return nil
}
