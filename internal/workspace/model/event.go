package model

import "time"

// MatchEventType is the kind of a peer notification on a match channel.
type MatchEventType string

const (
	MatchEventSubmitted MatchEventType = "submitted"
	MatchEventGaveUp    MatchEventType = "gave_up"
)

// MatchEvent is the payload exchanged between match participants.
type MatchEvent struct {
	ID            string         `json:"id"`
	Type          MatchEventType `json:"type"`
	MatchID       string         `json:"match_id"`
	ParticipantID string         `json:"participant_id"`
	SentAt        time.Time      `json:"sent_at"`
}

// SessionEventType is the kind of a notification pushed to the UI.
type SessionEventType string

const (
	EventTick              SessionEventType = "tick"
	EventPhaseChanged      SessionEventType = "phase_changed"
	EventOutcome           SessionEventType = "outcome"
	EventOpponentSubmitted SessionEventType = "opponent_submitted"
	EventFailure           SessionEventType = "failure"
	EventNavigate          SessionEventType = "navigate"
	EventClosed            SessionEventType = "closed"
)

// SessionEvent is delivered to the UI observer. Only the fields relevant to Type are set.
type SessionEvent struct {
	Type             SessionEventType
	SessionID        string
	RemainingSeconds int
	Phase            Phase
	Outcome          *TestOutcome
	Source           OutcomeSource
	Err              error
	Target           string
}
