package runner

import (
	"encoding/json"
	"strings"

	"github.com/cormorantdev/preflight/pkg/models"
)

// Embedded result markers. A step command may itself invoke preflight
// (nested/recursive use); when the inner invocation emits its structured
// result between these markers, the outer step propagates the inner
// result instead of re-deriving extraction from the raw text.
const (
	embeddedBegin = "-----BEGIN PREFLIGHT RESULT-----"
	embeddedEnd   = "-----END PREFLIGHT RESULT-----"
)

// EncodeEmbeddedResult renders res as a marker-delimited block suitable
// for inclusion in step output.
func EncodeEmbeddedResult(res *models.ValidationResult) (string, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return embeddedBegin + "\n" + string(b) + "\n" + embeddedEnd, nil
}

// ParseEmbeddedResult scans output for an embedded result block and
// returns the decoded inner result. The boolean is false for fresh
// output that should go through normal extraction. When several blocks
// appear, the last one wins (the innermost invocation printed first; the
// last block is the most enclosing nested run).
func ParseEmbeddedResult(output string) (*models.ValidationResult, bool) {
	begin := strings.LastIndex(output, embeddedBegin)
	if begin < 0 {
		return nil, false
	}
	rest := output[begin+len(embeddedBegin):]
	end := strings.Index(rest, embeddedEnd)
	if end < 0 {
		return nil, false
	}
	payload := strings.TrimSpace(rest[:end])

	var res models.ValidationResult
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		// A mangled block is treated as fresh output, not an error.
		return nil, false
	}
	return &res, true
}

// nestedExtraction derives the extraction to propagate from a nested
// result: the inner failing step's own extraction when present,
// otherwise a summary-level record.
func nestedExtraction(res *models.ValidationResult) *models.ErrorExtractorResult {
	if res.Passed {
		return nil
	}
	for _, p := range res.Phases {
		for _, s := range p.Steps {
			if !s.Passed && s.Extraction != nil {
				return s.Extraction
			}
		}
	}
	return &models.ErrorExtractorResult{
		Summary:     res.Summary,
		TotalErrors: 1,
	}
}

// nestedAllCached reports whether every step of a nested result was
// served from cache.
func nestedAllCached(res *models.ValidationResult) bool {
	seen := false
	for _, p := range res.Phases {
		for _, s := range p.Steps {
			seen = true
			if !s.IsCachedResult {
				return false
			}
		}
	}
	return seen
}
