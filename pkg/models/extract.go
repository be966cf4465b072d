package models

// ExtractedError is one structured error record pulled out of raw tool
// output by an extractor.
type ExtractedError struct {
	// File is the source file the error points at, if the extractor
	// could determine one.
	File string `json:"file,omitempty"`
	// Line is the 1-based line number, 0 when unknown.
	Line int `json:"line,omitempty"`
	// Message is the error text.
	Message string `json:"message"`
}

// ErrorExtractorResult is the structured form of a failing step's output.
type ErrorExtractorResult struct {
	// Summary is a one-line description of the failure.
	Summary string `json:"summary"`
	// TotalErrors counts the errors found; may exceed len(Errors) when
	// the extractor truncates.
	TotalErrors int `json:"total_errors"`
	// Errors holds the individual records.
	Errors []ExtractedError `json:"errors,omitempty"`
	// Guidance is optional remediation advice.
	Guidance string `json:"guidance,omitempty"`
	// Metadata carries extractor-specific key/value context.
	Metadata map[string]string `json:"metadata,omitempty"`
}
