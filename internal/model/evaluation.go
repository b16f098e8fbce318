package model

// Fact is a single learned statement with a confidence weight.
// Facts are the only evaluator artifact that survives into the memory store.
type Fact struct {
	Type       MemoryType `json:"type"`
	Content    string     `json:"content"`
	Confidence float64    `json:"confidence"`
}

// Pattern is a recurring behavior detected in the event window.
type Pattern struct {
	ID           string  `json:"id"`
	Occurrences  int     `json:"occurrences"`
	Significance float64 `json:"significance"`
}

// EvaluationResult is the output of one evaluator over one event window.
type EvaluationResult struct {
	Evaluator       string    `json:"evaluator"`
	Facts           []Fact    `json:"facts,omitempty"`
	Patterns        []Pattern `json:"patterns,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
}
