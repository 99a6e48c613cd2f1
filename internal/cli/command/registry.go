package command

import (
	"context"
	"sort"

	"codearena/internal/workspace/model"
	"codearena/internal/workspace/service"
	apperrors "codearena/pkg/errors"
)

// Workspace is the session surface the REPL drives.
type Workspace interface {
	Open(ctx context.Context, req service.OpenRequest) (model.SessionState, error)
	SetCode(ctx context.Context, id, text string) error
	Snapshot(id string) (model.SessionState, error)
	List() []model.SessionState
	RequestRun(ctx context.Context, id string) (model.TestOutcome, error)
	RequestSubmit(ctx context.Context, id string, trigger model.Trigger) (model.TestOutcome, error)
	GiveUp(ctx context.Context, id string) error
	Close(ctx context.Context, id string) error
	SetLanguage(ctx context.Context, id, language string) (model.SessionState, error)
	ResetCode(ctx context.Context, id string) (model.SessionState, error)
	ConfigureTimer(ctx context.Context, id string, enabled bool, seconds int) (model.SessionState, error)
	ResumeEditing(ctx context.Context, id string) (model.SessionState, error)
}

// Registry returns all REPL verbs keyed by verb and alias.
func Registry() map[string]Command {
	commands := []Command{
		{
			Verb:    "open",
			Summary: "open a problem: open problem=p1 lang=cpp [mode=solo|match|contest id=... participant=... timer=300]",
			Fields: []Field{
				{Name: "problem", Aliases: []string{"problem_id"}, Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "lang", Aliases: []string{"language"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "mode", Prompt: "mode", Type: FieldString},
				{Name: "id", Aliases: []string{"match_id", "contest_id"}, Prompt: "match or contest id", Type: FieldString},
				{Name: "participant", Prompt: "participant", Type: FieldString},
				{Name: "timer", Aliases: []string{"seconds"}, Prompt: "timer seconds", Type: FieldInt},
			},
		},
		{Verb: "list", Aliases: []string{"ls"}, Summary: "list open sessions"},
		{Verb: "show", Aliases: []string{"state"}, Summary: "show the current session", Session: true},
		{
			Verb:    "code",
			Summary: "replace the code: code file=./main.cpp | code text=\"...\"",
			Session: true,
			Fields: []Field{
				{Name: "text", Prompt: "code", Type: FieldString},
				{Name: "file", Aliases: []string{"source_file"}, Prompt: "source_file", Type: FieldFile},
			},
		},
		{Verb: "run", Summary: "run against the first sample case", Session: true},
		{Verb: "submit", Summary: "submit for judging", Session: true},
		{Verb: "giveup", Aliases: []string{"forfeit"}, Summary: "give up the current match", Session: true},
		{Verb: "close", Summary: "close the current session", Session: true},
		{
			Verb:    "lang",
			Summary: "switch language: lang lang=python",
			Session: true,
			Fields: []Field{
				{Name: "lang", Aliases: []string{"language"}, Prompt: "language", Type: FieldString, Required: true},
			},
		},
		{Verb: "reset", Summary: "restore the starter template", Session: true},
		{
			Verb:    "timer",
			Summary: "practice countdown: timer on=true seconds=600 | timer on=false",
			Session: true,
			Fields: []Field{
				{Name: "on", Aliases: []string{"enabled"}, Prompt: "enabled (true/false)", Type: FieldBool, Required: true},
				{Name: "seconds", Prompt: "seconds", Type: FieldInt},
			},
		},
		{Verb: "resume", Summary: "edit again after a solo submission", Session: true},
	}

	result := make(map[string]Command, len(commands)*2)
	for _, cmd := range commands {
		result[cmd.Verb] = cmd
		for _, alias := range cmd.Aliases {
			result[alias] = cmd
		}
	}
	return result
}

// Verbs returns the registered commands once each, ordered by verb.
func Verbs(commands map[string]Command) []Command {
	seen := make(map[string]bool, len(commands))
	list := make([]Command, 0, len(commands))
	for _, cmd := range commands {
		if seen[cmd.Verb] {
			continue
		}
		seen[cmd.Verb] = true
		list = append(list, cmd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Verb < list[j].Verb })
	return list
}

// Execute runs cmd against the workspace. sessionID is the target of session verbs.
func Execute(ctx context.Context, ws Workspace, cmd Command, sessionID string, params Params) (any, error) {
	params.Canonicalize(cmd.Fields)
	if err := params.Validate(cmd.Fields); err != nil {
		return nil, err
	}
	if cmd.Session && sessionID == "" {
		return nil, apperrors.Newf(apperrors.InvalidParams, "no session selected, open one or use: use <session_id>")
	}

	switch cmd.Verb {
	case "open":
		req, err := buildOpenRequest(params)
		if err != nil {
			return nil, err
		}
		return ws.Open(ctx, req)
	case "list":
		return ws.List(), nil
	case "show":
		return ws.Snapshot(sessionID)
	case "code":
		text, err := codeText(params)
		if err != nil {
			return nil, err
		}
		if err := ws.SetCode(ctx, sessionID, text); err != nil {
			return nil, err
		}
		return ws.Snapshot(sessionID)
	case "run":
		return ws.RequestRun(ctx, sessionID)
	case "submit":
		return ws.RequestSubmit(ctx, sessionID, model.TriggerUser)
	case "giveup":
		if err := ws.GiveUp(ctx, sessionID); err != nil {
			return nil, err
		}
		return map[string]string{"gave_up": sessionID}, nil
	case "close":
		if err := ws.Close(ctx, sessionID); err != nil {
			return nil, err
		}
		return map[string]string{"closed": sessionID}, nil
	case "lang":
		return ws.SetLanguage(ctx, sessionID, params.Get("lang"))
	case "reset":
		return ws.ResetCode(ctx, sessionID)
	case "timer":
		enabled, _ := ParseBool(params.Get("on"))
		seconds := 0
		if params.Get("seconds") != "" {
			seconds, _ = ParseInt(params.Get("seconds"))
		}
		return ws.ConfigureTimer(ctx, sessionID, enabled, seconds)
	case "resume":
		return ws.ResumeEditing(ctx, sessionID)
	}
	return nil, apperrors.Newf(apperrors.InvalidParams, "unknown command: %s", cmd.Verb)
}

func buildOpenRequest(params Params) (service.OpenRequest, error) {
	mode, err := model.ParseMode(params.Get("mode"), params.Get("id"), params.Get("participant"))
	if err != nil {
		return service.OpenRequest{}, err
	}
	req := service.OpenRequest{
		ProblemID: params.Get("problem"),
		Language:  params.Get("lang"),
		Mode:      mode,
	}
	if params.Get("timer") != "" {
		seconds, err := ParseInt(params.Get("timer"))
		if err != nil {
			return service.OpenRequest{}, apperrors.Wrapf(err, apperrors.InvalidFormat, "invalid timer: %v", err)
		}
		req.Timer = service.TimerConfig{Enabled: true, Seconds: seconds}
	}
	return req, nil
}

func codeText(params Params) (string, error) {
	if params.Get("file") != "" {
		return ReadFile(params.Get("file"))
	}
	if !params.Has("text") {
		return "", apperrors.RequiredError("text or file")
	}
	return params.Get("text"), nil
}
