// Package service implements the workspace session controller: the state machine that
// owns every open session and coordinates code persistence, the deadline timer,
// judge dispatch and match notifications.
package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"codearena/internal/workspace/model"
	"codearena/internal/workspace/notify"
	"codearena/internal/workspace/repository"
	"codearena/internal/workspace/result"
	apperrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	matchesPath = "/matches"
)

// ProblemSource supplies problem statements.
type ProblemSource interface {
	GetProblem(ctx context.Context, problemID string) (model.Problem, error)
}

// Observer receives UI notifications. It is never called with a session lock held.
type Observer interface {
	OnEvent(event model.SessionEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event model.SessionEvent)

func (f ObserverFunc) OnEvent(event model.SessionEvent) { f(event) }

// Dependencies are the collaborators of a SessionController.
type Dependencies struct {
	Judge    Judge
	Problems ProblemSource
	Codes    *repository.CodeStore
	Channel  notify.Channel
	Observer Observer
	Clock    clockwork.Clock

	// RedirectDelay is how long a contest result stays before navigating back to the contest.
	RedirectDelay time.Duration
}

// TimerConfig asks for a practice countdown.
type TimerConfig struct {
	Enabled bool
	Seconds int
}

// OpenRequest describes a session to open.
type OpenRequest struct {
	ProblemID string
	Language  string
	Mode      model.Mode
	Timer     TimerConfig
}

// SessionController owns every open session. It is the only surface the UI talks to.
type SessionController struct {
	problems ProblemSource
	codes    *repository.CodeStore
	router   *SubmissionRouter
	bridge   *NotificationBridge
	observer Observer
	clock    clockwork.Clock

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessionController(deps Dependencies) (*SessionController, error) {
	if deps.Judge == nil {
		return nil, apperrors.ValidationError("judge", "required")
	}
	if deps.Problems == nil {
		return nil, apperrors.ValidationError("problems", "required")
	}
	if deps.Codes == nil {
		return nil, apperrors.ValidationError("codes", "required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	channel := deps.Channel
	if channel == nil {
		channel = notify.NewMemoryHub()
	}
	bridge := NewNotificationBridge(channel, clock)
	return &SessionController{
		problems: deps.Problems,
		codes:    deps.Codes,
		router:   NewSubmissionRouter(deps.Judge, bridge, deps.RedirectDelay),
		bridge:   bridge,
		observer: deps.Observer,
		clock:    clock,
		sessions: make(map[string]*session),
	}, nil
}

// Open loads the problem and the saved draft and starts the session.
// Anything acquired along the way is released if a later step fails.
func (c *SessionController) Open(ctx context.Context, req OpenRequest) (model.SessionState, error) {
	if req.ProblemID == "" {
		return model.SessionState{}, apperrors.RequiredError("problem_id")
	}
	if req.Language == "" {
		return model.SessionState{}, apperrors.RequiredError("language")
	}
	mode := req.Mode
	if mode == nil {
		mode = model.Solo{}
	}
	if req.Timer.Enabled {
		if mode.Kind() != model.ModeSolo {
			return model.SessionState{}, apperrors.Newf(apperrors.ModeNotSupported, "timer is only available in solo mode")
		}
		if req.Timer.Seconds < 0 {
			return model.SessionState{}, apperrors.ValueError("timer_seconds", "must not be negative")
		}
	}

	problem, err := c.problems.GetProblem(ctx, req.ProblemID)
	if err != nil {
		return model.SessionState{}, apperrors.Wrapf(err, apperrors.ProblemDataMissing, "problem %s unavailable: %v", req.ProblemID, err)
	}
	if !problem.SupportsLanguage(req.Language) {
		return model.SessionState{}, languageError(req.ProblemID, req.Language)
	}

	id := uuid.NewString()
	ctx = logger.ContextWithSession(ctx, id, req.ProblemID)
	code := c.initialCode(ctx, problem, req.ProblemID, req.Language)

	s := &session{
		problem: problem,
		state: model.SessionState{
			ID:           id,
			ProblemID:    req.ProblemID,
			Mode:         mode,
			ModeKind:     mode.Kind(),
			Language:     req.Language,
			Code:         code,
			Phase:        model.PhaseIdle,
			ProblemTitle: problem.Title,
		},
	}
	if match, ok := mode.(model.Match); ok {
		if match.ParticipantID == "" {
			match.ParticipantID = id
			s.state.Mode = match
		}
		sub, err := c.bridge.Subscribe(ctx, match, func() { c.markOpponentSubmitted(id) })
		if err != nil {
			return model.SessionState{}, err
		}
		s.sub = sub
	}

	c.mu.Lock()
	c.sessions[id] = s
	c.mu.Unlock()

	if req.Timer.Enabled {
		s.mu.Lock()
		err := c.startTimer(id, s, req.Timer.Seconds)
		s.mu.Unlock()
		if err != nil {
			_ = c.Close(ctx, id)
			return model.SessionState{}, err
		}
	}

	logger.Info(ctx, "session opened",
		zap.String("mode", string(mode.Kind())),
		zap.String("language", req.Language),
		zap.Bool("timer", req.Timer.Enabled),
	)
	return c.Snapshot(id)
}

// initialCode prefers a non-empty saved draft over the problem template.
func (c *SessionController) initialCode(ctx context.Context, problem model.Problem, problemID, language string) string {
	text, found, err := c.codes.Load(ctx, problemID, language)
	if err != nil {
		logger.Warn(ctx, "load saved code failed, using template", zap.Error(err))
	}
	if err == nil && found && text != "" {
		return text
	}
	return problem.Template(language)
}

func languageError(problemID, language string) error {
	return apperrors.Newf(apperrors.LanguageNotSupported, "problem %s has no %s template", problemID, language).
		WithDetail("language", language)
}

// SetCode replaces the session buffer and schedules a durable write.
func (c *SessionController) SetCode(ctx context.Context, id, text string) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Closed {
		return closedError(id)
	}
	s.state.Code = text
	c.codes.SetCode(s.state.ProblemID, s.state.Language, text)
	return nil
}

// Snapshot returns the current state of a session.
func (c *SessionController) Snapshot(id string) (model.SessionState, error) {
	s, err := c.lookup(id)
	if err != nil {
		return model.SessionState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// List returns every open session ordered by problem and id.
func (c *SessionController) List() []model.SessionState {
	c.mu.RLock()
	sessions := make([]*session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.RUnlock()

	states := make([]model.SessionState, 0, len(sessions))
	for _, s := range sessions {
		s.mu.Lock()
		states = append(states, s.snapshot())
		s.mu.Unlock()
	}
	sort.Slice(states, func(i, j int) bool {
		if states[i].ProblemID != states[j].ProblemID {
			return states[i].ProblemID < states[j].ProblemID
		}
		return states[i].ID < states[j].ID
	})
	return states
}

// RequestRun runs the code against the first sample case. Only an idle session may run.
func (c *SessionController) RequestRun(ctx context.Context, id string) (model.TestOutcome, error) {
	s, err := c.lookup(id)
	if err != nil {
		return model.TestOutcome{}, err
	}
	s.mu.Lock()
	if err := admit(s, "run"); err != nil {
		s.mu.Unlock()
		return model.TestOutcome{}, err
	}
	s.state.Phase = model.PhaseRunning
	sub := s.submission()
	s.mu.Unlock()
	c.emitPhase(id, model.PhaseRunning)

	ctx = logger.ContextWithSession(ctx, id, sub.ProblemID)
	outcome, runErr := c.router.Run(ctx, sub)

	s.mu.Lock()
	if s.state.Closed {
		s.mu.Unlock()
		return model.TestOutcome{}, closedError(id)
	}
	s.state.Phase = model.PhaseIdle
	if runErr == nil {
		s.state.LastOutcome = &outcome
		s.state.LastOutcomeSource = model.SourceRun
	}
	expired := s.pendingExpiry
	s.pendingExpiry = false
	s.mu.Unlock()

	if runErr != nil {
		logger.Warn(ctx, "run failed", zap.Error(runErr))
		c.emitPhase(id, model.PhaseIdle)
	} else {
		c.emit(model.SessionEvent{Type: model.EventOutcome, SessionID: id, Outcome: &outcome, Source: model.SourceRun})
		c.emitPhase(id, model.PhaseIdle)
	}
	if expired {
		logger.Info(ctx, "deadline passed during run, submitting")
		c.expire(id)
	}
	if runErr != nil {
		return model.TestOutcome{}, runErr
	}
	return outcome, nil
}

// RequestSubmit sends the code to the judge operation of the session mode.
// A session submits at most once per Idle phase; the submission always ends in Completed.
func (c *SessionController) RequestSubmit(ctx context.Context, id string, trigger model.Trigger) (model.TestOutcome, error) {
	s, err := c.lookup(id)
	if err != nil {
		return model.TestOutcome{}, err
	}
	s.mu.Lock()
	if err := admit(s, "submit"); err != nil {
		s.mu.Unlock()
		return model.TestOutcome{}, err
	}
	s.state.Phase = model.PhaseSubmitting
	s.pendingExpiry = false
	timer := s.timer
	sub := s.submission()
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	c.emitPhase(id, model.PhaseSubmitting)

	ctx = logger.ContextWithSession(ctx, id, sub.ProblemID)
	logger.Info(ctx, "submitting", zap.String("trigger", string(trigger)), zap.String("mode", string(sub.Mode.Kind())))
	res, submitErr := c.router.Submit(ctx, sub)
	if submitErr != nil {
		res = RouteResult{Outcome: result.Failed(submitErr.Error())}
	}

	s.mu.Lock()
	if s.state.Closed {
		s.mu.Unlock()
		logger.Info(ctx, "discard submission result of closed session")
		return model.TestOutcome{}, closedError(id)
	}
	s.state.Phase = model.PhaseCompleted
	s.state.Timer.Running = false
	outcome := res.Outcome
	s.state.LastOutcome = &outcome
	s.state.LastOutcomeSource = model.SourceSubmit
	if res.ContestScore != nil {
		s.state.ContestScore = res.ContestScore
	}
	if res.Redirect != nil {
		s.redirect = c.scheduleRedirect(id, *res.Redirect)
	}
	s.mu.Unlock()

	c.emit(model.SessionEvent{Type: model.EventOutcome, SessionID: id, Outcome: &outcome, Source: model.SourceSubmit})
	c.emitPhase(id, model.PhaseCompleted)
	if submitErr != nil {
		logger.Warn(ctx, "submission failed", zap.String("trigger", string(trigger)), zap.Error(submitErr))
		if trigger == model.TriggerTimerExpiry {
			c.emit(model.SessionEvent{Type: model.EventFailure, SessionID: id, Err: submitErr})
		}
		return outcome, submitErr
	}
	logger.Info(ctx, "submission judged", zap.String("status", string(outcome.Status)))
	return outcome, nil
}

// GiveUp forfeits a match: the opponent is told, the UI leaves for the match list and the session closes.
func (c *SessionController) GiveUp(ctx context.Context, id string) error {
	s, err := c.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.state.Closed {
		s.mu.Unlock()
		return closedError(id)
	}
	match, ok := s.state.Mode.(model.Match)
	if !ok {
		kind := s.state.ModeKind
		s.mu.Unlock()
		return apperrors.Newf(apperrors.ModeNotSupported, "give up is not available in %s mode", kind).
			WithDetail("session_id", id)
	}
	s.mu.Unlock()

	ctx = logger.ContextWithSession(ctx, id, s.problem.ID)
	if err := c.bridge.PublishGaveUp(ctx, match); err != nil {
		logger.Warn(ctx, "give up notification lost", zap.Error(err))
	}
	c.emit(model.SessionEvent{Type: model.EventNavigate, SessionID: id, Target: matchesPath})
	return c.Close(ctx, id)
}

// Close releases everything the session holds and flushes its pending draft. It is idempotent.
func (c *SessionController) Close(ctx context.Context, id string) error {
	c.mu.Lock()
	s, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	res, first := s.detach()
	problemID, language := s.state.ProblemID, s.state.Language
	s.mu.Unlock()
	if !first {
		return nil
	}

	res.release()
	ctx = logger.ContextWithSession(ctx, id, problemID)
	err := c.codes.Flush(ctx, problemID, language)
	if err != nil {
		logger.Warn(ctx, "flush code on close failed", zap.Error(err))
	}
	c.emit(model.SessionEvent{Type: model.EventClosed, SessionID: id})
	logger.Info(ctx, "session closed")
	return err
}

// Shutdown closes every session and returns the first error.
func (c *SessionController) Shutdown(ctx context.Context) error {
	c.mu.RLock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	var firstErr error
	for _, id := range ids {
		if err := c.Close(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *SessionController) lookup(id string) (*session, error) {
	c.mu.RLock()
	s, ok := c.sessions[id]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.SessionNotFound, "session %s not found", id)
	}
	return s, nil
}

// admit checks that a judge call may start. It must be called with s.mu held.
func admit(s *session, op string) error {
	switch {
	case s.state.Closed:
		return closedError(s.state.ID)
	case s.state.Phase.InFlight():
		return apperrors.BusyError(s.state.ID, string(s.state.Phase))
	case s.state.Phase == model.PhaseCompleted:
		return apperrors.StateError(s.state.ID, op, string(s.state.Phase))
	}
	return nil
}

func closedError(id string) error {
	return apperrors.Newf(apperrors.SessionClosed, "session %s is closed", id)
}

func (c *SessionController) markOpponentSubmitted(id string) {
	s, err := c.lookup(id)
	if err != nil {
		return
	}
	s.mu.Lock()
	if s.state.Closed || s.state.OpponentSubmitted {
		s.mu.Unlock()
		return
	}
	s.state.OpponentSubmitted = true
	s.mu.Unlock()
	c.emit(model.SessionEvent{Type: model.EventOpponentSubmitted, SessionID: id})
}

// scheduleRedirect must be called with the session lock held.
func (c *SessionController) scheduleRedirect(id string, redirect Redirect) *pendingRedirect {
	timer := c.clock.NewTimer(redirect.After)
	p := &pendingRedirect{timer: timer, cancel: make(chan struct{})}
	go func() {
		select {
		case <-timer.Chan():
		case <-p.cancel:
			return
		}
		c.emit(model.SessionEvent{Type: model.EventNavigate, SessionID: id, Target: redirect.Target})
		_ = c.Close(context.Background(), id)
	}()
	return p
}

func (c *SessionController) emitPhase(id string, phase model.Phase) {
	c.emit(model.SessionEvent{Type: model.EventPhaseChanged, SessionID: id, Phase: phase})
}

func (c *SessionController) emit(event model.SessionEvent) {
	if c.observer != nil {
		c.observer.OnEvent(event)
	}
}
