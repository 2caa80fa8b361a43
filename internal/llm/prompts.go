package llm

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"nci-backend/internal/criteria"
)

//go:embed prompts/nci_system.txt
var systemTemplate string

// missingInformationID is the criterion where omission itself counts as evidence.
const missingInformationID = 4

var (
	systemOnce   sync.Once
	systemPrompt string
	systemHash   string
)

// SystemInstruction returns the instruction embedding all criteria verbatim.
func SystemInstruction() string {
	systemOnce.Do(func() {
		systemPrompt = buildSystemInstruction(criteria.All())
		sum := sha256.Sum256([]byte(systemPrompt))
		systemHash = hex.EncodeToString(sum[:])
	})
	return systemPrompt
}

// PromptHash identifies the instruction text in logs.
func PromptHash() string {
	SystemInstruction()
	return systemHash
}

func buildSystemInstruction(items []criteria.Criterion) string {
	lines := make([]string, 0, len(items))
	for _, c := range items {
		lines = append(lines, fmt.Sprintf("ID %d: %s - %s (Example: %s)", c.ID, c.Category, c.Question, c.Example))
	}
	out := strings.Replace(systemTemplate, "{{CRITERIA}}", strings.Join(lines, "\n"), 1)
	out = strings.Replace(out, "{{MISSING_INFO_ID}}", strconv.Itoa(missingInformationID), 1)
	return strings.TrimSpace(out)
}

// ResponseSchemaJSON is the JSON Schema every provider response must satisfy.
const ResponseSchemaJSON = `{
  "type": "object",
  "required": ["analysis"],
  "properties": {
    "analysis": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "score", "reasoning"],
        "properties": {
          "id": { "type": "integer", "description": "The criteria ID (1-20)" },
          "score": { "type": "integer", "description": "Score from 1 to 5" },
          "reasoning": { "type": "string", "description": "Brief justification for the score" }
        }
      }
    }
  }
}`

// ResponseSchema returns the response schema as a generic map for request bodies.
func ResponseSchema() map[string]any {
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":        map[string]any{"type": "integer", "description": "The criteria ID (1-20)"},
			"score":     map[string]any{"type": "integer", "description": "Score from 1 to 5"},
			"reasoning": map[string]any{"type": "string", "description": "Brief justification for the score"},
		},
		"required": []string{"id", "score", "reasoning"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"analysis": map[string]any{
				"type":  "array",
				"items": item,
			},
		},
		"required": []string{"analysis"},
	}
}
