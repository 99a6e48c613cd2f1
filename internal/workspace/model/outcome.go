package model

// Status is the canonical verdict of a run or submission.
type Status string

const (
	StatusAccepted          Status = "Accepted"
	StatusWrongAnswer       Status = "WrongAnswer"
	StatusRuntimeError      Status = "RuntimeError"
	StatusTimeLimitExceeded Status = "TimeLimitExceeded"
	StatusCompileError      Status = "CompileError"
	StatusUnknown           Status = "Unknown"
)

// CaseResult is the per-testcase line of an outcome.
type CaseResult struct {
	Index          int    `json:"index"`
	Passed         bool   `json:"passed"`
	Input          string `json:"input,omitempty"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	ActualOutput   string `json:"actual_output,omitempty"`
	Error          string `json:"error,omitempty"`
}

// TestOutcome is the canonical result shape. Only the result normalizer builds one.
type TestOutcome struct {
	Status          Status       `json:"status"`
	CasesPassed     int          `json:"cases_passed"`
	CasesTotal      int          `json:"cases_total"`
	ExecutionTimeMs *float64     `json:"execution_time_ms"`
	MemoryMb        *float64     `json:"memory_mb"`
	Cases           []CaseResult `json:"cases"`
	RawErrors       []string     `json:"raw_errors"`
}

// Valid checks 0 <= passed <= total and Accepted iff passed == total > 0.
func (o TestOutcome) Valid() bool {
	if o.CasesPassed < 0 || o.CasesPassed > o.CasesTotal {
		return false
	}
	allPassed := o.CasesTotal > 0 && o.CasesPassed == o.CasesTotal
	return (o.Status == StatusAccepted) == allPassed
}

// ContestScore carries contest display extras that sit outside the canonical outcome.
type ContestScore struct {
	Score  float64 `json:"score"`
	Status string  `json:"status"`
}
