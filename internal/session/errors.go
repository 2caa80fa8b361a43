package session

import (
	"errors"

	"nci-backend/internal/ingest"
	"nci-backend/internal/llm"
	"nci-backend/internal/snapshots"
)

var (
	ErrUnknownCriterion   = errors.New("unknown criterion")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
)

const (
	MsgAnalysisFailed = "Analysis failed. Please ensure a valid API key is set in the environment or try again."
	MsgReset          = "All fields reset."
	MsgSaved          = "Analysis saved successfully."
	MsgDocxFailed     = "Failed to parse .docx file."
	MsgFileFailed     = "Failed to read file."
)

const (
	ErrorCodeValidation  = "validation_error"
	ErrorCodeUnsupported = "unsupported_format"
	ErrorCodeExtraction  = "extraction_failed"
	ErrorCodeBusy        = "analysis_in_progress"
	ErrorCodeNoContent   = "no_content"
	ErrorCodeNotFound    = "not_found"
	ErrorCodeCorrupt     = "corrupt_snapshot"
	ErrorCodeStorage     = "storage_error"
	ErrorCodeInternal    = "internal_error"
)

// uploadMessage maps an ingestion failure to the notice shown to the user.
func uploadMessage(fileName string, err error) string {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return ingest.ErrUnsupportedFormat.Error()
	case errors.Is(err, ingest.ErrExtractorUnavailable):
		return ingest.ErrExtractorUnavailable.Error()
	case errors.Is(err, ingest.ErrExtractionFailed) && ingest.Extension(fileName) == "docx":
		return MsgDocxFailed
	default:
		return MsgFileFailed
	}
}

// snapshotMessage maps a persistence failure to the notice shown to the user.
func snapshotMessage(err error) string {
	switch {
	case errors.Is(err, snapshots.ErrNothingSaved):
		return snapshots.ErrNothingSaved.Error()
	case errors.Is(err, snapshots.ErrSaveFailed):
		return snapshots.ErrSaveFailed.Error()
	case errors.Is(err, snapshots.ErrLoadFailed):
		return snapshots.ErrLoadFailed.Error()
	default:
		return snapshots.ErrCorruptSnapshot.Error()
	}
}

func isNoContent(err error) bool {
	return errors.Is(err, llm.ErrNoContent)
}
