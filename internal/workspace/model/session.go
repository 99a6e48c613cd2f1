// Package model defines the workspace session entities shared by the controller and its collaborators.
package model

import "fmt"

// ModeKind names a session mode for display and logging.
type ModeKind string

const (
	ModeSolo    ModeKind = "solo"
	ModeMatch   ModeKind = "match"
	ModeContest ModeKind = "contest"
)

// Mode is a tagged variant: exactly one of Solo, Match or Contest.
type Mode interface {
	Kind() ModeKind
	isMode()
}

// Solo is unrestricted practice.
type Solo struct{}

// Match is a timed head-to-head match against one opponent.
type Match struct {
	MatchID       string
	ParticipantID string
}

// Contest is a timed contest problem.
type Contest struct {
	ContestID string
}

func (Solo) Kind() ModeKind    { return ModeSolo }
func (Match) Kind() ModeKind   { return ModeMatch }
func (Contest) Kind() ModeKind { return ModeContest }

func (Solo) isMode()    {}
func (Match) isMode()   {}
func (Contest) isMode() {}

// ParseMode builds a mode variant from its textual kind and the id that qualifies it.
func ParseMode(kind, id, participantID string) (Mode, error) {
	switch ModeKind(kind) {
	case ModeSolo, "":
		return Solo{}, nil
	case ModeMatch:
		if id == "" {
			return nil, fmt.Errorf("match mode requires a match id")
		}
		return Match{MatchID: id, ParticipantID: participantID}, nil
	case ModeContest:
		if id == "" {
			return nil, fmt.Errorf("contest mode requires a contest id")
		}
		return Contest{ContestID: id}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", kind)
	}
}

// Phase is the submission state machine state.
type Phase string

const (
	PhaseIdle       Phase = "Idle"
	PhaseRunning    Phase = "Running"
	PhaseSubmitting Phase = "Submitting"
	PhaseCompleted  Phase = "Completed"
)

// InFlight reports whether a judge call is outstanding.
func (p Phase) InFlight() bool {
	return p == PhaseRunning || p == PhaseSubmitting
}

// Trigger identifies who asked for a submission.
type Trigger string

const (
	TriggerUser        Trigger = "user"
	TriggerTimerExpiry Trigger = "timer_expiry"
)

// OutcomeSource tells the UI which path produced the current outcome.
type OutcomeSource string

const (
	SourceRun    OutcomeSource = "run"
	SourceSubmit OutcomeSource = "submit"
)

// TimerState is the countdown as seen by the UI.
type TimerState struct {
	RemainingSeconds int  `json:"remaining_seconds"`
	Enabled          bool `json:"enabled"`
	Running          bool `json:"running"`
}

// SessionState is an immutable snapshot of a session.
type SessionState struct {
	ID                string        `json:"id"`
	ProblemID         string        `json:"problem_id"`
	Mode              Mode          `json:"-"`
	ModeKind          ModeKind      `json:"mode"`
	Language          string        `json:"language"`
	Code              string        `json:"code"`
	Timer             TimerState    `json:"timer"`
	Phase             Phase         `json:"phase"`
	LastOutcome       *TestOutcome  `json:"last_outcome,omitempty"`
	LastOutcomeSource OutcomeSource `json:"last_outcome_source,omitempty"`
	ContestScore      *ContestScore `json:"contest_score,omitempty"`
	OpponentSubmitted bool          `json:"opponent_submitted"`
	Closed            bool          `json:"closed"`
	ProblemTitle      string        `json:"problem_title"`
}
