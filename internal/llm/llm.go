package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrMissingCredential = errors.New("API key is missing")
	ErrNoContent         = errors.New("no content provided for analysis")
	ErrInvalidResponse   = errors.New("invalid analysis response")
	ErrEmptyResponse     = errors.New("empty analysis response")
)

// Client abstracts LLM providers for criteria scoring.
type Client interface {
	Analyze(ctx context.Context, input Input) (Result, error)
}

// InlineFile is a binary document sent alongside the text.
type InlineFile struct {
	MimeType string
	Data     string // base64
}

// Input is the content under analysis.
type Input struct {
	Text string
	File *InlineFile
}

// HasContent reports whether there is anything to analyze.
func (in Input) HasContent() bool {
	return strings.TrimSpace(in.Text) != "" || in.File != nil
}

// Result holds per-criterion scores and justifications keyed by criterion id.
type Result struct {
	Scores    map[int]int
	Reasoning map[int]string
}

// Validation selects how strictly provider output is checked before merging.
type Validation string

const (
	// ValidationStrict requires every criterion exactly once with a score in range.
	ValidationStrict Validation = "strict"
	// ValidationLenient drops unknown ids and clamps scores, allowing partial results.
	ValidationLenient Validation = "lenient"
)

// ParseValidation normalizes a configured policy name.
func ParseValidation(raw string) Validation {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "lenient", "partial":
		return ValidationLenient
	default:
		return ValidationStrict
	}
}

// PlaceholderClient is used when no provider is configured. It still honors
// the preconditions so callers see the same errors a real provider raises.
type PlaceholderClient struct{}

// Analyze always fails with ErrMissingCredential once the input is valid.
func (PlaceholderClient) Analyze(ctx context.Context, input Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !input.HasContent() {
		return Result{}, ErrNoContent
	}
	return Result{}, ErrMissingCredential
}
