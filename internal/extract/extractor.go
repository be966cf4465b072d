// Package extract turns raw tool output into structured error records.
//
// The execution core treats extraction as a black box behind the
// Extractor interface; richer tool-specific extractors plug in from the
// outside. The default extractor here does just enough generic pattern
// matching to give failing steps a usable summary.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cormorantdev/preflight/pkg/models"
)

// Extractor pattern-matches failure output into structured records.
type Extractor interface {
	// Extract parses rawOutput. Implementations always return a result;
	// an empty-handed parse still yields a summary.
	Extract(rawOutput string) *models.ErrorExtractorResult
}

// maxRecordedErrors caps the records kept per extraction; TotalErrors
// still counts everything.
const maxRecordedErrors = 50

// locationPattern matches compiler-style "file:line[:col]: message" lines.
var locationPattern = regexp.MustCompile(`^([^\s:]+\.[A-Za-z0-9_]+):(\d+)(?::\d+)?:\s*(.+)$`)

// errorLinePattern matches generic error markers when no location parses.
var errorLinePattern = regexp.MustCompile(`(?i)\b(error|FAIL|failed|panic|fatal)\b`)

// RegexExtractor is the default generic extractor.
type RegexExtractor struct{}

// NewRegexExtractor creates the default extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Extract scans output line by line for compiler-style locations first
// and generic error markers second.
func (e *RegexExtractor) Extract(rawOutput string) *models.ErrorExtractorResult {
	var errs []models.ExtractedError
	total := 0

	for _, line := range strings.Split(rawOutput, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := locationPattern.FindStringSubmatch(line); m != nil {
			total++
			if len(errs) < maxRecordedErrors {
				lineNo, _ := strconv.Atoi(m[2])
				errs = append(errs, models.ExtractedError{
					File:    m[1],
					Line:    lineNo,
					Message: m[3],
				})
			}
			continue
		}
		if errorLinePattern.MatchString(line) {
			total++
			if len(errs) < maxRecordedErrors {
				errs = append(errs, models.ExtractedError{Message: line})
			}
		}
	}

	return &models.ErrorExtractorResult{
		Summary:     summarize(errs, total),
		TotalErrors: total,
		Errors:      errs,
	}
}

func summarize(errs []models.ExtractedError, total int) string {
	if total == 0 {
		return "command failed with no recognizable error output"
	}
	first := errs[0].Message
	if errs[0].File != "" {
		first = errs[0].File + ":" + strconv.Itoa(errs[0].Line) + ": " + first
	}
	if total == 1 {
		return first
	}
	return first + " (+" + strconv.Itoa(total-1) + " more)"
}

// Verify RegexExtractor implements Extractor at compile time.
var _ Extractor = (*RegexExtractor)(nil)
