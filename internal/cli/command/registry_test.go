package command_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codearena/internal/cli/command"
	"codearena/internal/workspace/model"
	"codearena/internal/workspace/service"
	apperrors "codearena/pkg/errors"
)

type fakeWorkspace struct {
	calls   []string
	open    service.OpenRequest
	code    string
	lang    string
	enabled bool
	seconds int
	trigger model.Trigger
}

func (w *fakeWorkspace) record(call string) { w.calls = append(w.calls, call) }

func (w *fakeWorkspace) Open(ctx context.Context, req service.OpenRequest) (model.SessionState, error) {
	w.record("open")
	w.open = req
	return model.SessionState{ID: "s1"}, nil
}

func (w *fakeWorkspace) SetCode(ctx context.Context, id, text string) error {
	w.record("code:" + id)
	w.code = text
	return nil
}

func (w *fakeWorkspace) Snapshot(id string) (model.SessionState, error) {
	w.record("show:" + id)
	return model.SessionState{ID: id, Code: w.code}, nil
}

func (w *fakeWorkspace) List() []model.SessionState {
	w.record("list")
	return nil
}

func (w *fakeWorkspace) RequestRun(ctx context.Context, id string) (model.TestOutcome, error) {
	w.record("run:" + id)
	return model.TestOutcome{}, nil
}

func (w *fakeWorkspace) RequestSubmit(ctx context.Context, id string, trigger model.Trigger) (model.TestOutcome, error) {
	w.record("submit:" + id)
	w.trigger = trigger
	return model.TestOutcome{}, nil
}

func (w *fakeWorkspace) GiveUp(ctx context.Context, id string) error {
	w.record("giveup:" + id)
	return nil
}

func (w *fakeWorkspace) Close(ctx context.Context, id string) error {
	w.record("close:" + id)
	return nil
}

func (w *fakeWorkspace) SetLanguage(ctx context.Context, id, language string) (model.SessionState, error) {
	w.record("lang:" + id)
	w.lang = language
	return model.SessionState{}, nil
}

func (w *fakeWorkspace) ResetCode(ctx context.Context, id string) (model.SessionState, error) {
	w.record("reset:" + id)
	return model.SessionState{}, nil
}

func (w *fakeWorkspace) ConfigureTimer(ctx context.Context, id string, enabled bool, seconds int) (model.SessionState, error) {
	w.record("timer:" + id)
	w.enabled, w.seconds = enabled, seconds
	return model.SessionState{}, nil
}

func (w *fakeWorkspace) ResumeEditing(ctx context.Context, id string) (model.SessionState, error) {
	w.record("resume:" + id)
	return model.SessionState{}, nil
}

func TestRegistryAliases(t *testing.T) {
	commands := command.Registry()
	for _, verb := range []string{"open", "list", "ls", "show", "code", "run", "submit", "giveup", "forfeit", "close", "lang", "reset", "timer", "resume"} {
		if _, ok := commands[verb]; !ok {
			t.Fatalf("missing command %s", verb)
		}
	}
	if commands["forfeit"].Verb != "giveup" {
		t.Fatalf("alias must resolve to its verb")
	}
	verbs := command.Verbs(commands)
	if len(verbs) != 12 || verbs[0].Verb != "close" {
		t.Fatalf("unexpected verb list: %d first=%s", len(verbs), verbs[0].Verb)
	}
}

func TestExecuteOpen(t *testing.T) {
	commands := command.Registry()
	ws := &fakeWorkspace{}
	params := command.Params{}
	params.Set("problem_id", "p1")
	params.Set("language", "cpp")
	params.Set("mode", "match")
	params.Set("match_id", "m1")
	params.Set("participant", "alice")

	if _, err := command.Execute(context.Background(), ws, commands["open"], "", params); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	match, ok := ws.open.Mode.(model.Match)
	if !ok || match.MatchID != "m1" || match.ParticipantID != "alice" {
		t.Fatalf("unexpected mode: %#v", ws.open.Mode)
	}
	if ws.open.ProblemID != "p1" || ws.open.Language != "cpp" || ws.open.Timer.Enabled {
		t.Fatalf("unexpected request: %+v", ws.open)
	}

	timed := command.Params{"problem": "p1", "lang": "cpp", "timer": "90"}
	if _, err := command.Execute(context.Background(), ws, commands["open"], "", timed); err != nil {
		t.Fatalf("timed open failed: %v", err)
	}
	if !ws.open.Timer.Enabled || ws.open.Timer.Seconds != 90 {
		t.Fatalf("unexpected timer: %+v", ws.open.Timer)
	}

	bad := command.Params{"problem": "p1", "lang": "cpp", "mode": "contest"}
	if _, err := command.Execute(context.Background(), ws, commands["open"], "", bad); err == nil {
		t.Fatalf("contest without id must fail")
	}
}

func TestExecuteSessionVerbs(t *testing.T) {
	commands := command.Registry()
	ws := &fakeWorkspace{}
	source := filepath.Join(t.TempDir(), "main.cpp")
	if err := os.WriteFile(source, []byte("int main() {}"), 0o600); err != nil {
		t.Fatalf("write source failed: %v", err)
	}

	steps := []struct {
		verb   string
		params command.Params
		call   string
	}{
		{verb: "code", params: command.Params{"file": source}, call: "code:s1"},
		{verb: "run", call: "run:s1"},
		{verb: "submit", call: "submit:s1"},
		{verb: "lang", params: command.Params{"language": "python"}, call: "lang:s1"},
		{verb: "timer", params: command.Params{"on": "yes", "seconds": "60"}, call: "timer:s1"},
		{verb: "reset", call: "reset:s1"},
		{verb: "resume", call: "resume:s1"},
		{verb: "giveup", call: "giveup:s1"},
		{verb: "close", call: "close:s1"},
	}
	for _, step := range steps {
		params := step.params
		if params == nil {
			params = command.Params{}
		}
		if _, err := command.Execute(context.Background(), ws, commands[step.verb], "s1", params); err != nil {
			t.Fatalf("%s failed: %v", step.verb, err)
		}
		found := false
		for _, call := range ws.calls {
			if call == step.call {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s did not reach the workspace: %v", step.verb, ws.calls)
		}
	}
	if ws.code != "int main() {}" || ws.lang != "python" || !ws.enabled || ws.seconds != 60 || ws.trigger != model.TriggerUser {
		t.Fatalf("unexpected workspace state: %+v", ws)
	}
}

func TestExecuteRejections(t *testing.T) {
	commands := command.Registry()
	ws := &fakeWorkspace{}

	if _, err := command.Execute(context.Background(), ws, commands["run"], "", command.Params{}); !apperrors.Is(err, apperrors.InvalidParams) {
		t.Fatalf("session verb without a session must fail with InvalidParams, got %v", err)
	}
	if _, err := command.Execute(context.Background(), ws, commands["timer"], "s1", command.Params{"on": "maybe"}); !apperrors.Is(err, apperrors.InvalidFormat) {
		t.Fatalf("invalid bool must fail with InvalidFormat, got %v", err)
	}
	if _, err := command.Execute(context.Background(), ws, commands["timer"], "s1", command.Params{"on": "true", "seconds": "ten"}); !apperrors.Is(err, apperrors.InvalidFormat) {
		t.Fatalf("invalid int must fail with InvalidFormat, got %v", err)
	}
	if _, err := command.Execute(context.Background(), ws, commands["code"], "s1", command.Params{}); !apperrors.Is(err, apperrors.RequiredFieldEmpty) {
		t.Fatalf("code without text or file must fail with RequiredFieldEmpty, got %v", err)
	}
	if len(ws.calls) != 0 {
		t.Fatalf("rejected commands must not reach the workspace: %v", ws.calls)
	}
}
