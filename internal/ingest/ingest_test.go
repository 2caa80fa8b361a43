package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Breaking news</w:t></w:r></w:p><w:p><w:r><w:t>Act now</w:t></w:r></w:p></w:body></w:document>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

func buildDocx(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": documentRels,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestIngestPlainText(t *testing.T) {
	ing := New(Options{})
	for _, name := range []string{"note.txt", "NOTES.MD", "readme.md"} {
		res, err := ing.Ingest(context.Background(), name, []byte("hello"))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if res.IsAttachment() || res.Text != "hello" {
			t.Fatalf("%s: unexpected result %+v", name, res)
		}
	}
}

func TestIngestStripsBOMAndRejectsInvalidUTF8(t *testing.T) {
	ing := New(Options{})
	res, err := ing.Ingest(context.Background(), "bom.txt", []byte("\xEF\xBB\xBFhi"))
	if err != nil || res.Text != "hi" {
		t.Fatalf("expected BOM stripped, got %q err=%v", res.Text, err)
	}
	_, err = ing.Ingest(context.Background(), "bad.txt", []byte{0xff, 0xfe, 0xfd})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestIngestPDFBecomesAttachment(t *testing.T) {
	payload := []byte("%PDF-1.4 fake body")
	res, err := New(Options{}).Ingest(context.Background(), "report.pdf", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsAttachment() {
		t.Fatalf("expected attachment, got %+v", res)
	}
	if res.Attachment.MimeType != MimePDF || res.Attachment.Name != "report.pdf" {
		t.Fatalf("unexpected attachment: %+v", res.Attachment)
	}
	decoded, err := base64.StdEncoding.DecodeString(res.Attachment.Data)
	if err != nil || !bytes.Equal(decoded, payload) {
		t.Fatalf("attachment data does not round-trip: %v", err)
	}
	if res.Text != "" {
		t.Fatalf("pdf must not produce text, got %q", res.Text)
	}
}

func TestIngestPDFLocalExtractionFailsOnGarbage(t *testing.T) {
	_, err := New(Options{ExtractPDFText: true}).Ingest(context.Background(), "broken.pdf", []byte("not a pdf"))
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}

func TestIngestDocx(t *testing.T) {
	res, err := New(Options{}).Ingest(context.Background(), "brief.docx", buildDocx(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsAttachment() {
		t.Fatalf("docx must produce text")
	}
	if res.Text != "Breaking news\nAct now" {
		t.Fatalf("unexpected docx text: %q", res.Text)
	}
}

func TestIngestDocxFailures(t *testing.T) {
	_, err := New(Options{}).Ingest(context.Background(), "broken.docx", []byte("not a zip"))
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}

	ing := &Ingester{}
	_, err = ing.Ingest(context.Background(), "brief.docx", buildDocx(t))
	if !errors.Is(err, ErrExtractorUnavailable) {
		t.Fatalf("expected ErrExtractorUnavailable, got %v", err)
	}
}

func TestIngestRejections(t *testing.T) {
	ing := New(Options{})
	tests := []struct {
		name string
		file string
		data []byte
		want error
	}{
		{name: "exe", file: "setup.exe", data: []byte("MZ"), want: ErrUnsupportedFormat},
		{name: "no extension", file: "README", data: []byte("x"), want: ErrUnsupportedFormat},
		{name: "traversal", file: "../etc/passwd.txt", data: []byte("x"), want: ErrInvalidFileName},
		{name: "empty name", file: "  ", data: []byte("x"), want: ErrInvalidFileName},
		{name: "too large", file: "big.txt", data: make([]byte, MaxUploadSize+1), want: ErrTooLarge},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ing.Ingest(context.Background(), tt.file, tt.data); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
