package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codearena/internal/workspace/model"
	"codearena/internal/workspace/notify"
	"codearena/internal/workspace/repository"
	"codearena/internal/workspace/service"
	apperrors "codearena/pkg/errors"

	"github.com/jonboulle/clockwork"
)

const acceptedBody = `{"verdict":"Accepted","cases_total":3,"cases_passed":3}`

type judgeCall struct {
	Op       string
	ID       string
	Language string
	Code     string
}

type fakeJudge struct {
	mu      sync.Mutex
	calls   []judgeCall
	body    string
	err     error
	gate    chan struct{}
	entered chan judgeCall
}

func newFakeJudge() *fakeJudge {
	return &fakeJudge{body: acceptedBody, entered: make(chan judgeCall, 16)}
}

func (j *fakeJudge) call(ctx context.Context, c judgeCall) (model.RawResult, error) {
	j.mu.Lock()
	j.calls = append(j.calls, c)
	body, err, gate := j.body, j.err, j.gate
	j.mu.Unlock()
	j.entered <- c
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.RawResult{}, ctx.Err()
		}
	}
	if err != nil {
		return model.RawResult{}, err
	}
	return model.RawResult{Body: []byte(body)}, nil
}

func (j *fakeJudge) RunProbe(ctx context.Context, problemID, language, code string) (model.RawResult, error) {
	return j.call(ctx, judgeCall{Op: "run", ID: problemID, Language: language, Code: code})
}

func (j *fakeJudge) SubmitSolo(ctx context.Context, problemID, language, code string) (model.RawResult, error) {
	return j.call(ctx, judgeCall{Op: "solo", ID: problemID, Language: language, Code: code})
}

func (j *fakeJudge) SubmitMatch(ctx context.Context, matchID, language, code string) (model.RawResult, error) {
	return j.call(ctx, judgeCall{Op: "match", ID: matchID, Language: language, Code: code})
}

func (j *fakeJudge) SubmitContest(ctx context.Context, contestID, problemID, language, code string) (model.RawResult, error) {
	return j.call(ctx, judgeCall{Op: "contest", ID: contestID + "/" + problemID, Language: language, Code: code})
}

func (j *fakeJudge) setBody(body string) {
	j.mu.Lock()
	j.body = body
	j.mu.Unlock()
}

func (j *fakeJudge) setErr(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}

func (j *fakeJudge) block() chan struct{} {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.gate = make(chan struct{})
	return j.gate
}

func (j *fakeJudge) callCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.calls)
}

func (j *fakeJudge) lastCall() judgeCall {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.calls) == 0 {
		return judgeCall{}
	}
	return j.calls[len(j.calls)-1]
}

func waitEntered(t *testing.T, j *fakeJudge) judgeCall {
	t.Helper()
	select {
	case c := <-j.entered:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("judge was not called")
	}
	return judgeCall{}
}

type fakeProblems struct {
	problems map[string]model.Problem
	err      error
}

func (p *fakeProblems) GetProblem(ctx context.Context, problemID string) (model.Problem, error) {
	if p.err != nil {
		return model.Problem{}, p.err
	}
	problem, ok := p.problems[problemID]
	if !ok {
		return model.Problem{}, apperrors.Newf(apperrors.ProblemNotFound, "problem %s not found", problemID)
	}
	return problem, nil
}

type memoryRepo struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{data: make(map[string]string)}
}

func (r *memoryRepo) Get(ctx context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return "", false, r.getErr
	}
	v, ok := r.data[key]
	return v, ok, nil
}

func (r *memoryRepo) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = value
	return nil
}

func (r *memoryRepo) value(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	return v, ok
}

type recorder struct {
	mu     sync.Mutex
	events []model.SessionEvent
	ch     chan model.SessionEvent
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan model.SessionEvent, 256)}
}

func (r *recorder) OnEvent(event model.SessionEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.ch <- event
}

func (r *recorder) count(sessionID string, eventType model.SessionEventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.SessionID == sessionID && e.Type == eventType {
			n++
		}
	}
	return n
}

func (r *recorder) wait(t *testing.T, sessionID string, eventType model.SessionEventType) model.SessionEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-r.ch:
			if e.SessionID == sessionID && e.Type == eventType {
				return e
			}
		case <-deadline:
			t.Fatalf("event %s for %s not delivered", eventType, sessionID)
		}
	}
}

type harness struct {
	ctrl     *service.SessionController
	judge    *fakeJudge
	problems *fakeProblems
	repo     *memoryRepo
	codes    *repository.CodeStore
	hub      *notify.MemoryHub
	clock    *clockwork.FakeClock
	events   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		judge: newFakeJudge(),
		problems: &fakeProblems{problems: map[string]model.Problem{
			"p1": {
				ID:    "p1",
				Title: "Two Sum",
				FunctionSignature: map[string]string{
					"cpp":    "class Solution {};",
					"python": "class Solution:\n    pass",
				},
			},
		}},
		repo:   newMemoryRepo(),
		hub:    notify.NewMemoryHub(),
		clock:  clockwork.NewFakeClock(),
		events: newRecorder(),
	}
	h.codes = repository.NewCodeStore(h.repo, repository.WithClock(h.clock), repository.WithDebounce(time.Hour))
	ctrl, err := service.NewSessionController(service.Dependencies{
		Judge:    h.judge,
		Problems: h.problems,
		Codes:    h.codes,
		Channel:  h.hub,
		Observer: h.events,
		Clock:    h.clock,
	})
	if err != nil {
		t.Fatalf("new controller failed: %v", err)
	}
	h.ctrl = ctrl
	t.Cleanup(func() { _ = ctrl.Shutdown(context.Background()) })
	return h
}

func (h *harness) open(t *testing.T, req service.OpenRequest) model.SessionState {
	t.Helper()
	if req.ProblemID == "" {
		req.ProblemID = "p1"
	}
	if req.Language == "" {
		req.Language = "cpp"
	}
	state, err := h.ctrl.Open(context.Background(), req)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return state
}

func expectCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", code)
	}
	if !apperrors.Is(err, code) {
		t.Fatalf("expected %v, got %v (%v)", code, apperrors.GetCode(err), err)
	}
}

var errJudgeDown = errors.New("connection refused")
