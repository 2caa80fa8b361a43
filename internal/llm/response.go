package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"nci-backend/internal/criteria"
)

var responseSchemaLoader = gojsonschema.NewStringLoader(ResponseSchemaJSON)

type analysisItem struct {
	ID        int    `json:"id"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

type analysisEnvelope struct {
	Analysis []analysisItem `json:"analysis"`
}

// ParseResult decodes and validates a provider's JSON verdict.
func ParseResult(raw []byte, policy Validation) (Result, error) {
	payload := extractJSONPayload(string(raw))
	if payload == "" {
		return Result{}, ErrEmptyResponse
	}

	check, err := gojsonschema.Validate(responseSchemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("%w: parse: %v", ErrInvalidResponse, err)
	}
	if !check.Valid() {
		issues := make([]string, 0, len(check.Errors()))
		for _, desc := range check.Errors() {
			issues = append(issues, desc.String())
		}
		return Result{}, fmt.Errorf("%w: schema: %s", ErrInvalidResponse, strings.Join(issues, "; "))
	}

	var env analysisEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Result{}, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}

	if policy == ValidationLenient {
		return lenientResult(env.Analysis), nil
	}
	return strictResult(env.Analysis)
}

func strictResult(items []analysisItem) (Result, error) {
	res := Result{
		Scores:    make(map[int]int, len(items)),
		Reasoning: make(map[int]string, len(items)),
	}
	for _, item := range items {
		if !criteria.Known(item.ID) {
			return Result{}, fmt.Errorf("%w: unknown criterion id %d", ErrInvalidResponse, item.ID)
		}
		if item.Score < criteria.MinScore || item.Score > criteria.MaxScore {
			return Result{}, fmt.Errorf("%w: criterion %d score %d out of range", ErrInvalidResponse, item.ID, item.Score)
		}
		if _, dup := res.Scores[item.ID]; dup {
			return Result{}, fmt.Errorf("%w: criterion %d scored twice", ErrInvalidResponse, item.ID)
		}
		res.Scores[item.ID] = item.Score
		res.Reasoning[item.ID] = item.Reasoning
	}
	if missing := missingIDs(res.Scores); len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: missing criteria %v", ErrInvalidResponse, missing)
	}
	return res, nil
}

func lenientResult(items []analysisItem) Result {
	res := Result{
		Scores:    make(map[int]int, len(items)),
		Reasoning: make(map[int]string, len(items)),
	}
	for _, item := range items {
		if !criteria.Known(item.ID) {
			continue
		}
		res.Scores[item.ID] = criteria.ClampScore(item.Score)
		res.Reasoning[item.ID] = item.Reasoning
	}
	return res
}

func missingIDs(scores map[int]int) []int {
	var missing []int
	for _, id := range criteria.IDs() {
		if _, ok := scores[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Ints(missing)
	return missing
}

// extractJSONPayload strips markdown fences some models wrap around JSON.
func extractJSONPayload(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	return trimmed
}
