package ingest

import "errors"

var (
	ErrUnsupportedFormat    = errors.New("Unsupported file format. Please use PDF, DOCX, TXT, or MD.")
	ErrExtractorUnavailable = errors.New("Docx parser not loaded.")
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrTooLarge             = errors.New("file exceeds upload limit")
	ErrInvalidFileName      = errors.New("invalid file name")
)
