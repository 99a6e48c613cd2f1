package result_test

import (
	"encoding/json"
	"math/rand"
	"reflect"
	"testing"

	"codearena/internal/workspace/model"
	"codearena/internal/workspace/result"
)

func sampleRun(body string) model.RawResult {
	return model.RawResult{Shape: model.ShapeProbe, Body: []byte(body)}
}

func full(body string) model.RawResult {
	return model.RawResult{Shape: model.ShapeFull, Body: []byte(body)}
}

func TestNormalizeSampleRun(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus model.Status
		wantPassed int
	}{
		{name: "runtime error", body: `{"status":"error","error":"segfault"}`, wantStatus: model.StatusRuntimeError, wantPassed: 0},
		{name: "success flag", body: `{"success":true,"output":"3","expected_output":"3"}`, wantStatus: model.StatusAccepted, wantPassed: 1},
		{name: "success status", body: `{"status":"success","output":"3"}`, wantStatus: model.StatusAccepted, wantPassed: 1},
		{name: "mismatch", body: `{"status":"failed","output":"2","expected_output":"3"}`, wantStatus: model.StatusWrongAnswer, wantPassed: 0},
		{name: "empty object", body: `{}`, wantStatus: model.StatusWrongAnswer, wantPassed: 0},
		{name: "not json", body: `<html>502</html>`, wantStatus: model.StatusWrongAnswer, wantPassed: 0},
		{name: "false error flag", body: `{"success":false,"error":false}`, wantStatus: model.StatusWrongAnswer, wantPassed: 0},
		{name: "object error", body: `{"success":false,"error":{}}`, wantStatus: model.StatusWrongAnswer, wantPassed: 0},
		{name: "blank error", body: `{"success":false,"stderr":"  "}`, wantStatus: model.StatusWrongAnswer, wantPassed: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := result.Normalize(sampleRun(tt.body))
			if out.Status != tt.wantStatus {
				t.Fatalf("expected status %s, got %s", tt.wantStatus, out.Status)
			}
			if out.CasesTotal != 1 || out.CasesPassed != tt.wantPassed {
				t.Fatalf("expected %d/1, got %d/%d", tt.wantPassed, out.CasesPassed, out.CasesTotal)
			}
			if len(out.Cases) != 1 || out.Cases[0].Index != 0 {
				t.Fatalf("expected a single case at index 0, got %+v", out.Cases)
			}
			if tt.wantStatus != model.StatusRuntimeError && (len(out.RawErrors) != 0 || out.Cases[0].Error != "") {
				t.Fatalf("unexpected error text: %v %q", out.RawErrors, out.Cases[0].Error)
			}
		})
	}
}

func TestNormalizeSampleRunKeepsDetails(t *testing.T) {
	out := result.Normalize(sampleRun(`{"status":"error","error":"segfault","input":"1 2","execution_time_ms":12.5,"memory_kb":2048}`))
	if out.RawErrors[0] != "segfault" || out.Cases[0].Error != "segfault" {
		t.Fatalf("expected error to be kept, got %+v", out)
	}
	if out.Cases[0].Input != "1 2" {
		t.Fatalf("expected input to be kept, got %q", out.Cases[0].Input)
	}
	if out.ExecutionTimeMs == nil || *out.ExecutionTimeMs != 12.5 {
		t.Fatalf("unexpected execution time: %v", out.ExecutionTimeMs)
	}
	if out.MemoryMb == nil || *out.MemoryMb != 2 {
		t.Fatalf("unexpected memory: %v", out.MemoryMb)
	}
}

func TestNormalizeFull(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus model.Status
		wantPassed int
		wantTotal  int
	}{
		{
			name:       "accepted",
			body:       `{"status":"Accepted","cases_passed":3,"cases_total":3}`,
			wantStatus: model.StatusAccepted, wantPassed: 3, wantTotal: 3,
		},
		{
			name:       "wrong answer",
			body:       `{"status":"Wrong Answer","passed":1,"total":3}`,
			wantStatus: model.StatusWrongAnswer, wantPassed: 1, wantTotal: 3,
		},
		{
			name:       "verdict code wins over lifecycle status",
			body:       `{"status":"Finished","verdict":"TLE","passed":2,"total":5}`,
			wantStatus: model.StatusTimeLimitExceeded, wantPassed: 2, wantTotal: 5,
		},
		{
			name:       "compile error without cases",
			body:       `{"status":"compile_error","compile_output":"main.cpp:1: error"}`,
			wantStatus: model.StatusCompileError, wantPassed: 0, wantTotal: 0,
		},
		{
			name:       "unrecognized status",
			body:       `{"status":"Memory Limit Exceeded","passed":0,"total":2}`,
			wantStatus: model.StatusUnknown, wantPassed: 0, wantTotal: 2,
		},
		{
			name:       "counts derived from cases",
			body:       `{"status":"WrongAnswer","test_results":[{"passed":true},{"passed":false},{"status":"AC"}]}`,
			wantStatus: model.StatusWrongAnswer, wantPassed: 2, wantTotal: 3,
		},
		{
			name:       "accepted claim without cases",
			body:       `{"status":"Accepted"}`,
			wantStatus: model.StatusUnknown, wantPassed: 0, wantTotal: 0,
		},
		{
			name:       "all passed overrides stale verdict",
			body:       `{"status":"Runtime Error","passed":4,"total":4}`,
			wantStatus: model.StatusAccepted, wantPassed: 4, wantTotal: 4,
		},
		{
			name:       "passed clamped to total",
			body:       `{"status":"WA","passed":9,"total":3}`,
			wantStatus: model.StatusAccepted, wantPassed: 3, wantTotal: 3,
		},
		{
			name:       "negative counts",
			body:       `{"status":"WA","passed":-2,"total":-1}`,
			wantStatus: model.StatusWrongAnswer, wantPassed: 0, wantTotal: 0,
		},
		{
			name:       "nested contest result",
			body:       `{"score":100,"status":"Accepted","result":{"status":"Accepted","cases_passed":2,"cases_total":2}}`,
			wantStatus: model.StatusAccepted, wantPassed: 2, wantTotal: 2,
		},
		{
			name:       "string numbers",
			body:       `{"status":"WA","passed":"1","total":"2"}`,
			wantStatus: model.StatusWrongAnswer, wantPassed: 1, wantTotal: 2,
		},
		{
			name:       "wrong types",
			body:       `{"status":7,"passed":true,"total":{"n":3},"test_results":"none"}`,
			wantStatus: model.StatusUnknown, wantPassed: 0, wantTotal: 0,
		},
		{
			name:       "null body",
			body:       `null`,
			wantStatus: model.StatusUnknown, wantPassed: 0, wantTotal: 0,
		},
		{
			name:       "array body",
			body:       `[1,2,3]`,
			wantStatus: model.StatusUnknown, wantPassed: 0, wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := result.Normalize(full(tt.body))
			if out.Status != tt.wantStatus {
				t.Fatalf("expected status %s, got %s", tt.wantStatus, out.Status)
			}
			if out.CasesPassed != tt.wantPassed || out.CasesTotal != tt.wantTotal {
				t.Fatalf("expected %d/%d, got %d/%d", tt.wantPassed, tt.wantTotal, out.CasesPassed, out.CasesTotal)
			}
			if !out.Valid() {
				t.Fatalf("outcome violates invariants: %+v", out)
			}
		})
	}
}

func TestNormalizeFullCasesAndErrors(t *testing.T) {
	body := `{
		"status": "Wrong Answer",
		"test_results": [
			{"index": 0, "passed": true, "input": "1", "expected_output": "1", "actual_output": "1"},
			{"index": 1, "passed": false, "input": "2", "expected_output": "4", "actual_output": "3"},
			"garbage"
		],
		"errors": ["line 3: warning", 42],
		"error": "assertion failed",
		"runtime": "15",
		"memory_mb": 7.5
	}`
	out := result.Normalize(full(body))
	if len(out.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(out.Cases))
	}
	if out.Cases[1].ActualOutput != "3" || out.Cases[1].ExpectedOutput != "4" || out.Cases[1].Passed {
		t.Fatalf("unexpected second case: %+v", out.Cases[1])
	}
	want := []string{"line 3: warning", "assertion failed"}
	if !reflect.DeepEqual(out.RawErrors, want) {
		t.Fatalf("expected errors %v, got %v", want, out.RawErrors)
	}
	if out.ExecutionTimeMs == nil || *out.ExecutionTimeMs != 15 {
		t.Fatalf("unexpected time: %v", out.ExecutionTimeMs)
	}
	if out.MemoryMb == nil || *out.MemoryMb != 7.5 {
		t.Fatalf("unexpected memory: %v", out.MemoryMb)
	}
}

func TestContestScore(t *testing.T) {
	score, ok := result.ContestScore(full(`{"score":"75.5","status":"Partial"}`))
	if !ok || score.Score != 75.5 || score.Status != "Partial" {
		t.Fatalf("unexpected score: %+v ok=%v", score, ok)
	}
	if _, ok := result.ContestScore(full(`{"passed":1}`)); ok {
		t.Fatalf("expected no contest score")
	}
	if _, ok := result.ContestScore(full(`not json`)); ok {
		t.Fatalf("expected no contest score for malformed input")
	}
}

func TestFailedOutcome(t *testing.T) {
	out := result.Failed("judge unreachable")
	if out.Status != model.StatusUnknown || !out.Valid() {
		t.Fatalf("unexpected failed outcome: %+v", out)
	}
	if len(out.RawErrors) != 1 || out.RawErrors[0] != "judge unreachable" {
		t.Fatalf("expected failure reason in raw errors, got %v", out.RawErrors)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want model.Status
		ok   bool
	}{
		{"Accepted", model.StatusAccepted, true},
		{"wrong_answer", model.StatusWrongAnswer, true},
		{"Time Limit Exceeded", model.StatusTimeLimitExceeded, true},
		{"CE", model.StatusCompileError, true},
		{"runtime-error", model.StatusRuntimeError, true},
		{"Unknown", model.StatusUnknown, true},
		{"MLE", model.StatusUnknown, false},
		{"", model.StatusUnknown, false},
	}
	for _, tt := range tests {
		got, ok := result.ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = %s,%v want %s,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

// TestNormalizeTotal feeds randomly generated, mostly malformed documents through
// both shapes and checks the outcome invariants, determinism and reconcile idempotence.
func TestNormalizeTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := []string{
		"status", "verdict", "passed", "total", "cases_passed", "cases_total", "success",
		"error", "errors", "test_results", "cases", "result", "runtime", "memory_mb", "memory_kb", "score",
	}

	var value func(depth int) any
	value = func(depth int) any {
		switch rng.Intn(9) {
		case 0:
			return nil
		case 1:
			return rng.Intn(2) == 0
		case 2:
			return float64(rng.Intn(20) - 5)
		case 3:
			return []string{"Accepted", "WA", "error", "success", "TLE", "CE", "weird", ""}[rng.Intn(8)]
		case 4:
			return 1e300
		case 5:
			return "12abc"
		case 6:
			if depth > 2 {
				return "leaf"
			}
			list := make([]any, rng.Intn(4))
			for i := range list {
				list[i] = value(depth + 1)
			}
			return list
		default:
			if depth > 2 {
				return map[string]any{}
			}
			m := map[string]any{}
			for i := 0; i < rng.Intn(5); i++ {
				m[keys[rng.Intn(len(keys))]] = value(depth + 1)
			}
			return m
		}
	}

	for i := 0; i < 2000; i++ {
		doc := map[string]any{}
		for j := 0; j < rng.Intn(8); j++ {
			doc[keys[rng.Intn(len(keys))]] = value(0)
		}
		body, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("marshal generated doc failed: %v", err)
		}
		if rng.Intn(10) == 0 {
			body = body[:rng.Intn(len(body))]
		}

		for _, shape := range []model.Shape{model.ShapeProbe, model.ShapeFull} {
			raw := model.RawResult{Shape: shape, Body: body}
			out := result.Normalize(raw)
			if !out.Valid() {
				t.Fatalf("invalid outcome for %s %s: %+v", shape, body, out)
			}
			if again := result.Normalize(raw); !reflect.DeepEqual(out, again) {
				t.Fatalf("normalize is not deterministic for %s", body)
			}
			if re := result.Reconcile(out); !reflect.DeepEqual(out, re) {
				t.Fatalf("reconcile is not idempotent for %s", body)
			}
		}
	}
}
