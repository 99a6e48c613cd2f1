package service

import (
	"context"

	"codearena/internal/workspace/model"
	apperrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// SetLanguage switches the editor language. The draft of the old language is flushed
// and the buffer is replaced with the saved draft or template of the new one.
func (c *SessionController) SetLanguage(ctx context.Context, id, language string) (model.SessionState, error) {
	if language == "" {
		return model.SessionState{}, apperrors.RequiredError("language")
	}
	s, err := c.lookup(id)
	if err != nil {
		return model.SessionState{}, err
	}
	s.mu.Lock()
	if err := editable(s, "set_language"); err != nil {
		s.mu.Unlock()
		return model.SessionState{}, err
	}
	problemID, previous, problem := s.state.ProblemID, s.state.Language, s.problem
	s.mu.Unlock()
	if previous == language {
		return c.Snapshot(id)
	}
	if !problem.SupportsLanguage(language) {
		return model.SessionState{}, languageError(problemID, language)
	}

	ctx = logger.ContextWithSession(ctx, id, problemID)
	if err := c.codes.Flush(ctx, problemID, previous); err != nil {
		logger.Warn(ctx, "flush code before language switch failed", zap.Error(err))
	}
	code := c.initialCode(ctx, problem, problemID, language)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := editable(s, "set_language"); err != nil {
		return model.SessionState{}, err
	}
	s.state.Language = language
	s.state.Code = code
	logger.Info(ctx, "language switched", zap.String("from", previous), zap.String("to", language))
	return s.snapshot(), nil
}

// ResetCode replaces the buffer with the starter template and persists it.
func (c *SessionController) ResetCode(ctx context.Context, id string) (model.SessionState, error) {
	s, err := c.lookup(id)
	if err != nil {
		return model.SessionState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := editable(s, "reset_code"); err != nil {
		return model.SessionState{}, err
	}
	template := s.problem.Template(s.state.Language)
	s.state.Code = template
	c.codes.SetCode(s.state.ProblemID, s.state.Language, template)
	return s.snapshot(), nil
}

// ConfigureTimer enables or disables the practice countdown of a solo session.
// A running countdown must be disabled before it can be started again.
func (c *SessionController) ConfigureTimer(ctx context.Context, id string, enabled bool, seconds int) (model.SessionState, error) {
	s, err := c.lookup(id)
	if err != nil {
		return model.SessionState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Closed {
		return model.SessionState{}, closedError(id)
	}
	if s.state.ModeKind != model.ModeSolo {
		return model.SessionState{}, apperrors.Newf(apperrors.ModeNotSupported, "timer is only available in solo mode")
	}

	if !enabled {
		timer := s.timer
		s.timer = nil
		s.state.Timer.Enabled = false
		s.state.Timer.Running = false
		if timer == nil {
			return s.snapshot(), nil
		}
		s.mu.Unlock()
		timer.Stop()
		s.mu.Lock()
		if !s.state.Timer.Enabled {
			s.state.Timer.RemainingSeconds = timer.Remaining()
		}
		return s.snapshot(), nil
	}

	if seconds < 0 {
		return model.SessionState{}, apperrors.ValueError("timer_seconds", "must not be negative")
	}
	if s.state.Phase != model.PhaseIdle {
		return model.SessionState{}, apperrors.StateError(id, "configure_timer", string(s.state.Phase))
	}
	if s.timer != nil && s.timer.Running() {
		return model.SessionState{}, apperrors.StateError(id, "configure_timer", "timer_running")
	}
	if err := c.startTimer(id, s, seconds); err != nil {
		return model.SessionState{}, err
	}
	logger.Info(logger.ContextWithSession(ctx, id, s.state.ProblemID), "timer started", zap.Int("seconds", seconds))
	return s.snapshot(), nil
}

// ResumeEditing returns a completed solo session to Idle so it can be submitted again.
func (c *SessionController) ResumeEditing(ctx context.Context, id string) (model.SessionState, error) {
	s, err := c.lookup(id)
	if err != nil {
		return model.SessionState{}, err
	}
	s.mu.Lock()
	if s.state.Closed {
		s.mu.Unlock()
		return model.SessionState{}, closedError(id)
	}
	if s.state.ModeKind != model.ModeSolo {
		kind := s.state.ModeKind
		s.mu.Unlock()
		return model.SessionState{}, apperrors.Newf(apperrors.ModeNotSupported, "%s sessions cannot be resubmitted", kind)
	}
	if s.state.Phase != model.PhaseCompleted {
		phase := s.state.Phase
		s.mu.Unlock()
		return model.SessionState{}, apperrors.StateError(id, "resume_editing", string(phase))
	}
	s.state.Phase = model.PhaseIdle
	state := s.snapshot()
	s.mu.Unlock()

	c.emitPhase(id, model.PhaseIdle)
	return state, nil
}

// startTimer arms a fresh countdown. It must be called with s.mu held.
func (c *SessionController) startTimer(id string, s *session, seconds int) error {
	if seconds < 0 {
		seconds = 0
	}
	timer := NewDeadlineTimer(c.clock)
	err := timer.Start(seconds,
		func(remaining int) { c.emit(model.SessionEvent{Type: model.EventTick, SessionID: id, RemainingSeconds: remaining}) },
		func() { c.expire(id) },
	)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.InternalServerError, "start timer: %v", err)
	}
	s.timer = timer
	s.state.Timer = model.TimerState{RemainingSeconds: seconds, Enabled: true, Running: true}
	return nil
}

type expiryAction int

const (
	expirySkip expiryAction = iota
	expiryDeferred
	expiryRetry
)

// expire submits whatever is in the buffer when the countdown runs out.
// A run in flight defers the submission until the run returns.
func (c *SessionController) expire(id string) {
	ctx := context.Background()
	for {
		_, err := c.RequestSubmit(ctx, id, model.TriggerTimerExpiry)
		if err == nil {
			return
		}
		if apperrors.Is(err, apperrors.SessionBusy) {
			switch c.deferExpiry(id) {
			case expiryDeferred:
				return
			case expiryRetry:
				continue
			}
		}
		switch apperrors.GetCode(err) {
		case apperrors.SessionBusy, apperrors.InvalidSessionState, apperrors.SessionClosed, apperrors.SessionNotFound:
			logger.Info(ctx, "timer expired without submitting", zap.String("session_id", id), zap.Error(err))
		}
		return
	}
}

// deferExpiry hands the expiry to a run in flight.
func (c *SessionController) deferExpiry(id string) expiryAction {
	s, err := c.lookup(id)
	if err != nil {
		return expirySkip
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state.Closed:
		return expirySkip
	case s.state.Phase == model.PhaseRunning:
		s.pendingExpiry = true
		return expiryDeferred
	case s.state.Phase == model.PhaseIdle:
		return expiryRetry
	}
	return expirySkip
}

// editable reports whether the buffer may be replaced. It must be called with s.mu held.
func editable(s *session, op string) error {
	switch {
	case s.state.Closed:
		return closedError(s.state.ID)
	case s.state.Phase != model.PhaseIdle:
		return apperrors.StateError(s.state.ID, op, string(s.state.Phase))
	}
	return nil
}
