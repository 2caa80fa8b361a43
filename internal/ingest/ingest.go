package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"nci-backend/internal/shared/util"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// MaxUploadSize bounds any single ingested file.
	MaxUploadSize = 10 << 20
)

// Attachment is a binary document forwarded to the analysis provider as-is.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

// Result is either extracted plain text or a binary attachment, never both.
type Result struct {
	Text       string
	Attachment *Attachment
}

// IsAttachment reports whether the result carries a binary payload.
func (r Result) IsAttachment() bool {
	return r.Attachment != nil
}

// DocxExtractor converts a .docx payload to plain text.
type DocxExtractor interface {
	ExtractText(data []byte) (string, error)
}

// Options tunes ingestion.
type Options struct {
	// ExtractPDFText turns PDFs into plain text locally instead of forwarding
	// the binary to the provider.
	ExtractPDFText bool
}

// Ingester dispatches uploaded files by extension.
type Ingester struct {
	Docx           DocxExtractor
	ExtractPDFText bool
}

// New returns an Ingester using the default DOCX reader.
func New(opts Options) *Ingester {
	return &Ingester{
		Docx:           DocxReader{},
		ExtractPDFText: opts.ExtractPDFText,
	}
}

// Ingest converts one uploaded file. It never mutates caller state; on error
// the caller keeps whatever it had.
func (i *Ingester) Ingest(ctx context.Context, fileName string, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}
	if len(data) > MaxUploadSize {
		return Result{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	switch Extension(name) {
	case "txt", "md":
		text, err := decodeText(data)
		if err != nil {
			return Result{}, fmt.Errorf("ingest name=%s: %w", name, err)
		}
		return Result{Text: text}, nil
	case "pdf":
		if i.ExtractPDFText {
			text, err := extractPDF(data)
			if err != nil {
				return Result{}, fmt.Errorf("ingest name=%s: %w: %v", name, ErrExtractionFailed, err)
			}
			return Result{Text: text}, nil
		}
		return Result{Attachment: &Attachment{
			Name:     name,
			MimeType: MimePDF,
			Data:     base64.StdEncoding.EncodeToString(data),
		}}, nil
	case "docx":
		if i.Docx == nil {
			return Result{}, ErrExtractorUnavailable
		}
		text, err := i.Docx.ExtractText(data)
		if err != nil {
			return Result{}, fmt.Errorf("ingest name=%s: %w: %v", name, ErrExtractionFailed, err)
		}
		return Result{Text: text}, nil
	default:
		return Result{}, ErrUnsupportedFormat
	}
}

// Extension returns the lower-cased extension without the dot.
func Extension(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

func decodeText(data []byte) (string, error) {
	data = trimBOM(data)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrExtractionFailed)
	}
	return string(data), nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
