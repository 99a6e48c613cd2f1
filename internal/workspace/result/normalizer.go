// Package result maps raw judge payloads onto the canonical TestOutcome and its verdicts.
package result

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"codearena/internal/workspace/model"
)

// maxCount bounds counters decoded from untrusted input.
const maxCount = math.MaxInt32

var verdicts = map[string]model.Status{
	"accepted":          model.StatusAccepted,
	"ac":                model.StatusAccepted,
	"success":           model.StatusAccepted,
	"ok":                model.StatusAccepted,
	"passed":            model.StatusAccepted,
	"wronganswer":       model.StatusWrongAnswer,
	"wa":                model.StatusWrongAnswer,
	"runtimeerror":      model.StatusRuntimeError,
	"re":                model.StatusRuntimeError,
	"timelimitexceeded": model.StatusTimeLimitExceeded,
	"tle":               model.StatusTimeLimitExceeded,
	"timeout":           model.StatusTimeLimitExceeded,
	"compileerror":      model.StatusCompileError,
	"compilationerror":  model.StatusCompileError,
	"ce":                model.StatusCompileError,
	"unknown":           model.StatusUnknown,
}

// ParseStatus maps a judge verdict string onto the canonical status.
// The second return value is false when the verdict is not recognized.
func ParseStatus(raw string) (model.Status, bool) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(raw)))
	status, ok := verdicts[key]
	if !ok {
		return model.StatusUnknown, false
	}
	return status, true
}

// Normalize converts untrusted judge output into a TestOutcome. It never fails:
// malformed input degrades to zero counts and an Unknown status.
func Normalize(raw model.RawResult) model.TestOutcome {
	doc := decode(raw.Body)
	var out model.TestOutcome
	if raw.Shape == model.ShapeProbe {
		out = normalizeProbe(doc)
	} else {
		out = normalizeFull(doc)
	}
	return Reconcile(out)
}

// ContestScore extracts the contest display fields from a contest submission response.
func ContestScore(raw model.RawResult) (model.ContestScore, bool) {
	doc := decode(raw.Body)
	score, hasScore := firstNumber(doc, "score", "points")
	status := firstString(doc, "status", "verdict")
	if !hasScore && status == "" {
		return model.ContestScore{}, false
	}
	return model.ContestScore{Score: score, Status: status}, true
}

// Reconcile enforces the outcome invariants. Counts are clamped into range,
// all cases passing implies Accepted, and an Accepted claim the counts do not
// support becomes Unknown. Applying it twice is the same as applying it once.
func Reconcile(out model.TestOutcome) model.TestOutcome {
	if out.CasesTotal < 0 {
		out.CasesTotal = 0
	}
	if out.CasesPassed < 0 {
		out.CasesPassed = 0
	}
	if out.CasesPassed > out.CasesTotal {
		out.CasesPassed = out.CasesTotal
	}
	if out.Status == "" {
		out.Status = model.StatusUnknown
	}
	allPassed := out.CasesTotal > 0 && out.CasesPassed == out.CasesTotal
	switch {
	case allPassed:
		out.Status = model.StatusAccepted
	case out.Status == model.StatusAccepted:
		out.Status = model.StatusUnknown
	}
	if out.Cases == nil {
		out.Cases = []model.CaseResult{}
	}
	if out.RawErrors == nil {
		out.RawErrors = []string{}
	}
	return out
}

// Failed builds the synthetic outcome recorded when a submission never got a judge answer.
func Failed(reason string) model.TestOutcome {
	out := model.TestOutcome{Status: model.StatusUnknown}
	if reason != "" {
		out.RawErrors = []string{reason}
	}
	return Reconcile(out)
}

func normalizeProbe(doc map[string]any) model.TestOutcome {
	errMsg := firstText(doc, "error", "stderr", "error_message", "errorMessage")
	success := reportsSuccess(doc)

	tc := model.CaseResult{
		Index:          0,
		Passed:         success,
		Input:          firstString(doc, "input"),
		ExpectedOutput: firstString(doc, "expected_output", "expectedOutput", "expected"),
		ActualOutput:   firstString(doc, "output", "actual_output", "actualOutput", "stdout"),
		Error:          errMsg,
	}
	out := model.TestOutcome{
		CasesTotal:      1,
		Cases:           []model.CaseResult{tc},
		ExecutionTimeMs: optionalNumber(doc, "execution_time_ms", "executionTimeMs", "time_ms", "runtime"),
		MemoryMb:        memoryMb(doc),
	}
	switch {
	case success:
		out.Status = model.StatusAccepted
		out.CasesPassed = 1
	case errMsg != "":
		out.Status = model.StatusRuntimeError
	default:
		out.Status = model.StatusWrongAnswer
	}
	if errMsg != "" {
		out.RawErrors = []string{errMsg}
	}
	return out
}

func reportsSuccess(doc map[string]any) bool {
	for _, key := range []string{"success", "passed"} {
		if v, ok := doc[key].(bool); ok {
			return v
		}
	}
	status, ok := ParseStatus(firstString(doc, "status", "verdict"))
	return ok && status == model.StatusAccepted
}

func normalizeFull(doc map[string]any) model.TestOutcome {
	body := doc
	if inner, ok := doc["result"].(map[string]any); ok {
		body = inner
	}

	out := model.TestOutcome{Status: model.StatusUnknown}
	for _, key := range []string{"verdict", "status"} {
		if status, ok := ParseStatus(asString(body[key])); ok {
			out.Status = status
			break
		}
	}

	out.Cases = parseCases(firstList(body, "test_results", "testResults", "cases", "tests"))
	passedCases := 0
	for _, c := range out.Cases {
		if c.Passed {
			passedCases++
		}
	}

	total, hasTotal := firstInt(body, "cases_total", "casesTotal", "total", "total_tests")
	if !hasTotal || total < len(out.Cases) {
		total = len(out.Cases)
	}
	passed, hasPassed := firstInt(body, "cases_passed", "casesPassed", "passed", "passed_tests")
	if !hasPassed {
		passed = passedCases
	}
	out.CasesTotal = total
	out.CasesPassed = passed

	out.ExecutionTimeMs = optionalNumber(body, "execution_time_ms", "executionTimeMs", "time_ms", "runtime")
	out.MemoryMb = memoryMb(body)
	out.RawErrors = parseErrors(body)
	return out
}

func parseCases(items []any) []model.CaseResult {
	cases := make([]model.CaseResult, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		idx, hasIdx := firstInt(m, "index", "test_id", "case_index")
		if !hasIdx {
			idx = i
		}
		passed, ok := m["passed"].(bool)
		if !ok {
			status, recognized := ParseStatus(firstString(m, "status", "verdict"))
			passed = recognized && status == model.StatusAccepted
		}
		cases = append(cases, model.CaseResult{
			Index:          idx,
			Passed:         passed,
			Input:          firstString(m, "input"),
			ExpectedOutput: firstString(m, "expected_output", "expectedOutput", "expected"),
			ActualOutput:   firstString(m, "actual_output", "actualOutput", "output", "stdout"),
			Error:          firstText(m, "error", "stderr"),
		})
	}
	return cases
}

func parseErrors(body map[string]any) []string {
	var errs []string
	for _, item := range firstList(body, "errors", "raw_errors", "rawErrors") {
		if s := text(item); s != "" {
			errs = append(errs, s)
		}
	}
	for _, key := range []string{"error", "error_message", "compile_output", "compile_error"} {
		if s := text(body[key]); s != "" {
			errs = append(errs, s)
		}
	}
	return errs
}

func memoryMb(doc map[string]any) *float64 {
	if v := optionalNumber(doc, "memory_mb", "memoryMb", "memory"); v != nil {
		return v
	}
	if kb, ok := firstNumber(doc, "memory_kb", "memoryKb"); ok {
		mb := kb / 1024
		return &mb
	}
	return nil
}

func decode(body []byte) map[string]any {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return map[string]any{}
	}
	return doc
}

func firstString(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(doc[key]); s != "" {
			return s
		}
	}
	return ""
}

// firstText is firstString restricted to string values. Error fields use it so flags
// such as "error": false never read as an error message.
func firstText(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := text(doc[key]); s != "" {
			return s
		}
	}
	return ""
}

func text(v any) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func firstList(doc map[string]any, keys ...string) []any {
	for _, key := range keys {
		if list, ok := doc[key].([]any); ok {
			return list
		}
	}
	return nil
}

func firstNumber(doc map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if f, ok := asNumber(doc[key]); ok {
			return f, true
		}
	}
	return 0, false
}

func optionalNumber(doc map[string]any, keys ...string) *float64 {
	f, ok := firstNumber(doc, keys...)
	if !ok {
		return nil
	}
	return &f
}

func firstInt(doc map[string]any, keys ...string) (int, bool) {
	f, ok := firstNumber(doc, keys...)
	if !ok {
		return 0, false
	}
	switch {
	case f > maxCount:
		return maxCount, true
	case f < -maxCount:
		return -maxCount, true
	}
	return int(f), true
}

func asNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
