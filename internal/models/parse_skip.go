package models

// ParseSkip records a single line or fragment that failed structural
// parsing. Skips are collected, not propagated; the analysis continues.
type ParseSkip struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}
