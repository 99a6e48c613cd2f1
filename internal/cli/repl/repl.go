package repl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"codearena/internal/cli/command"
	"codearena/internal/cli/state"
	"codearena/internal/workspace/model"
	"codearena/pkg/utils/response"

	"github.com/google/shlex"
)

// Session holds REPL state. It is also the UI observer of the controller.
type Session struct {
	commands   map[string]command.Command
	statePath  string
	prettyJSON bool
	input      *bufio.Reader

	outMu  sync.Mutex
	output *bufio.Writer

	mu         sync.Mutex
	tokenState state.TokenState
	current    string
}

func New(in io.Reader, out io.Writer, commands map[string]command.Command, tokenState state.TokenState, statePath string, prettyJSON bool) *Session {
	return &Session{
		commands:   commands,
		statePath:  statePath,
		prettyJSON: prettyJSON,
		input:      bufio.NewReader(in),
		output:     bufio.NewWriter(out),
		tokenState: tokenState,
	}
}

// Token returns the judge access token. It is safe to call from any goroutine.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenState.AccessToken
}

// Current returns the selected session id.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) setCurrent(id string) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}

// Run reads commands until exit or end of input.
func (s *Session) Run(ctx context.Context, ws command.Workspace) error {
	for {
		s.prompt()
		line, err := s.input.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input failed: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return nil
		}
		if s.handleSystemCommand(line) {
			continue
		}
		if err := s.handleCommand(ctx, ws, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) prompt() {
	label := "arena"
	if id := s.Current(); id != "" {
		label = "arena:" + shortID(id)
	}
	s.outMu.Lock()
	_, _ = s.output.WriteString(label + "> ")
	_ = s.output.Flush()
	s.outMu.Unlock()
}

func (s *Session) handleSystemCommand(line string) bool {
	switch line {
	case "help":
		s.printHelp()
		return true
	}
	if strings.HasPrefix(line, "use ") {
		id := strings.TrimSpace(strings.TrimPrefix(line, "use "))
		s.setCurrent(id)
		s.printLine("using session %s", id)
		return true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true
	}
	if strings.HasPrefix(line, "show ") {
		return s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 || parts[0] != "token" {
		s.printLine("usage: set token <access_token>")
		return
	}
	if len(parts) < 2 {
		s.printLine("usage: set token <access_token>")
		return
	}
	s.mu.Lock()
	s.tokenState.AccessToken = parts[1]
	s.tokenState.UpdatedAt = time.Now().UTC()
	st := s.tokenState
	s.mu.Unlock()
	if err := state.Save(s.statePath, st); err != nil {
		s.printLine("save token failed: %v", err)
		return
	}
	s.printLine("token updated")
}

// handleShow covers the system show targets. Anything else falls through to the show verb.
func (s *Session) handleShow(args string) bool {
	switch args {
	case "token":
		s.mu.Lock()
		masked := s.tokenState.Masked()
		s.mu.Unlock()
		s.printLine("token: %s", masked)
	case "config":
		s.printLine("tokenStatePath: %s", s.statePath)
	default:
		return false
	}
	return true
}

func (s *Session) handleCommand(ctx context.Context, ws command.Workspace, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}
	cmd, ok := s.commands[tokens[0]]
	if !ok {
		return fmt.Errorf("unknown command: %s", tokens[0])
	}
	params := command.Params{}
	for _, token := range tokens[1:] {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}
	params.Canonicalize(cmd.Fields)

	target := params.Get("session")
	if target == "" {
		target = s.Current()
	}
	if err := s.promptMissing(&cmd, params); err != nil {
		return err
	}

	value, err := command.Execute(ctx, ws, cmd, target, params)
	if err == nil && cmd.Verb == "open" {
		if st, ok := value.(model.SessionState); ok {
			s.setCurrent(st.ID)
		}
	}
	if err == nil && (cmd.Verb == "close" || cmd.Verb == "giveup") && target == s.Current() {
		s.setCurrent("")
	}
	s.render(response.From(ctx, value, err))
	return nil
}

func (s *Session) promptMissing(cmd *command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		value, err := s.promptValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(prompt string) (string, error) {
	s.printLine("%s:", prompt)
	line, err := s.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) render(result response.Result[any]) {
	var (
		data []byte
		err  error
	)
	if s.prettyJSON {
		data, err = json.MarshalIndent(result, "", "  ")
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		s.printLine("render result failed: %v", err)
		return
	}
	s.printLine("%s", string(data))
}

// OnEvent prints controller notifications as they arrive.
func (s *Session) OnEvent(event model.SessionEvent) {
	id := shortID(event.SessionID)
	switch event.Type {
	case model.EventTick:
		if event.RemainingSeconds%60 == 0 || event.RemainingSeconds <= 10 {
			s.printLine("[%s] %s left", id, time.Duration(event.RemainingSeconds)*time.Second)
		}
	case model.EventPhaseChanged:
		s.printLine("[%s] phase %s", id, event.Phase)
	case model.EventOutcome:
		if event.Outcome != nil {
			s.printLine("[%s] %s result: %s (%d/%d)", id, event.Source, event.Outcome.Status, event.Outcome.CasesPassed, event.Outcome.CasesTotal)
		}
	case model.EventOpponentSubmitted:
		s.printLine("[%s] your opponent has submitted", id)
	case model.EventFailure:
		s.printLine("[%s] automatic submission failed: %v", id, event.Err)
	case model.EventNavigate:
		s.printLine("[%s] navigate to %s", id, event.Target)
	case model.EventClosed:
		s.mu.Lock()
		if s.current == event.SessionID {
			s.current = ""
		}
		s.mu.Unlock()
		s.printLine("[%s] closed", id)
	}
}

func (s *Session) printHelp() {
	s.printLine("usage: <command> key=value ...  (session=<id> targets another session)")
	for _, cmd := range command.Verbs(s.commands) {
		s.printLine("  %-8s %s", cmd.Verb, cmd.Summary)
	}
	s.printLine("system: help | exit | use <session_id> | set token <token> | show token|config")
	s.printLine("examples:")
	s.printLine("  open problem=two-sum lang=cpp timer=900")
	s.printLine("  code file=./main.cpp")
	s.printLine("  open problem=two-sum lang=python mode=match id=m42 participant=alice")
}

func (s *Session) printLine(format string, args ...interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, _ = fmt.Fprintf(s.output, format+"\n", args...)
	_ = s.output.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
