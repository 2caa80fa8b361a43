package session

import (
	"encoding/base64"

	"nci-backend/internal/criteria"
)

const (
	StatusIdle      = "idle"
	StatusAnalyzing = "analyzing"
)

// AttachmentInfo describes the attached file without its payload.
type AttachmentInfo struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// View is an immutable copy of the session for presentation.
type View struct {
	Version      uint64              `json:"version"`
	Scores       map[int]int         `json:"scores"`
	Reasoning    map[int]string      `json:"aiReasoning"`
	InputText    string              `json:"inputText"`
	AttachedFile *AttachmentInfo     `json:"attachedFile"`
	Total        int                 `json:"total"`
	Tier         criteria.ScoreRange `json:"tier"`
	TierLabel    string              `json:"tierLabel"`
	Status       string              `json:"status"`
	Analyzing    bool                `json:"isAnalyzing"`
	Error        string              `json:"error,omitempty"`
	Notice       string              `json:"notice,omitempty"`
}

func attachmentSize(data string) int {
	return base64.StdEncoding.DecodedLen(len(data))
}
