package service

import (
	"sync"

	"codearena/internal/workspace/model"

	"github.com/jonboulle/clockwork"
)

// session is one open workspace. Every field is guarded by mu.
type session struct {
	mu sync.Mutex

	state   model.SessionState
	problem model.Problem

	timer    *DeadlineTimer
	sub      *Subscription
	redirect *pendingRedirect

	// pendingExpiry is set when the deadline passes during a run; the run submits on return.
	pendingExpiry bool
}

// pendingRedirect is a scheduled navigation that close can still cancel.
type pendingRedirect struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// resources are what a session holds outside itself. They are released together, once.
type resources struct {
	timer    *DeadlineTimer
	sub      *Subscription
	redirect *pendingRedirect
}

// detach marks the session closed and hands its resources to the caller.
// It must be called with mu held and returns false if the session was already closed.
func (s *session) detach() (resources, bool) {
	if s.state.Closed {
		return resources{}, false
	}
	s.state.Closed = true
	s.state.Timer.Running = false
	s.pendingExpiry = false
	res := resources{timer: s.timer, sub: s.sub, redirect: s.redirect}
	s.timer, s.sub, s.redirect = nil, nil, nil
	return res, true
}

func (r resources) release() {
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.sub != nil {
		r.sub.Close()
	}
	if r.redirect != nil {
		r.redirect.timer.Stop()
		close(r.redirect.cancel)
	}
}

// snapshot copies the state so callers never share the outcome pointers.
func (s *session) snapshot() model.SessionState {
	st := s.state
	if st.LastOutcome != nil {
		out := *st.LastOutcome
		st.LastOutcome = &out
	}
	if st.ContestScore != nil {
		score := *st.ContestScore
		st.ContestScore = &score
	}
	if s.timer != nil {
		st.Timer.RemainingSeconds = s.timer.Remaining()
		st.Timer.Running = s.timer.Running()
	}
	return st
}

func (s *session) submission() Submission {
	return Submission{
		Mode:      s.state.Mode,
		ProblemID: s.state.ProblemID,
		Language:  s.state.Language,
		Code:      s.state.Code,
	}
}
