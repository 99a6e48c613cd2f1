package model

// Example is a worked sample shown with the problem statement.
type Example struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// Problem is read-only input to a session.
type Problem struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Difficulty        string            `json:"difficulty"`
	Description       string            `json:"description"`
	Examples          []Example         `json:"examples"`
	Constraints       []string          `json:"constraints"`
	FunctionSignature map[string]string `json:"function_signature"`
}

// SupportsLanguage reports whether the problem offers the language.
// A problem without function signatures accepts any language.
func (p Problem) SupportsLanguage(language string) bool {
	if len(p.FunctionSignature) == 0 {
		return true
	}
	_, ok := p.FunctionSignature[language]
	return ok
}

// Template returns the starter code for a language, if any.
func (p Problem) Template(language string) string {
	if p.FunctionSignature == nil {
		return ""
	}
	return p.FunctionSignature[language]
}
