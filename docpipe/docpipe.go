// Package docpipe normalizes raw document bytes into plain text.
//
// Supported declared types:
//   - text/plain — UTF-8 passthrough
//   - application/pdf — page-ordered text extraction (pdfcpu, pure Go)
//   - DOCX / legacy Word MIME aliases — paragraph text from word/document.xml
//
// All parsers are pure Go, CGO_ENABLED=0 compatible.
//
// Usage:
//
//	res, err := docpipe.Normalize(data, docpipe.TypePDF)
//	fmt.Println(res.Text)
package docpipe

import (
	"errors"
	"fmt"
)

// Recognized MIME type identifiers.
const (
	TypeText = "text/plain"
	TypePDF  = "application/pdf"
	TypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeDoc  = "application/msword"
)

// ErrUnsupportedType is returned when the declared type is not recognized.
// Checked before any parsing is attempted; non-retryable.
var ErrUnsupportedType = errors.New("docpipe: unsupported document type")

// ErrParseFailure is returned when the bytes cannot be decoded under their
// declared type (corrupt PDF structure, corrupt ZIP/XML container, invalid
// encoding). Non-retryable for the same bytes.
var ErrParseFailure = errors.New("docpipe: parse failure")

// Quality holds extraction quality metrics for PDF documents. Reviewers use
// these to triage documents where text extraction likely degraded (scans,
// image-heavy pages).
type Quality struct {
	PageCount      int     `json:"page_count"`
	CharsPerPage   float64 `json:"chars_per_page"`
	PrintableRatio float64 `json:"printable_ratio"`
	WordlikeRatio  float64 `json:"wordlike_ratio"`
}

// Result is the outcome of normalizing one document.
type Result struct {
	Text    string   // normalized plain text, source order preserved
	Quality *Quality // set for PDF input, nil otherwise
}

// Normalize converts raw document bytes of the declared MIME type into plain
// text. Page order (PDF) and paragraph order (Word) are preserved, units
// joined by newlines. An empty Text is a valid outcome here; callers decide
// whether to reject empty documents.
func Normalize(data []byte, declaredType string) (*Result, error) {
	switch declaredType {
	case TypeText:
		text, err := extractText(data)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	case TypePDF:
		text, quality, err := extractPDF(data)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text, Quality: quality}, nil
	case TypeDocx, TypeDoc:
		text, err := extractDocx(data)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, declaredType)
	}
}

// Supported reports whether the declared type has a parser.
func Supported(declaredType string) bool {
	switch declaredType {
	case TypeText, TypePDF, TypeDocx, TypeDoc:
		return true
	}
	return false
}

// SupportedTypes returns all recognized MIME type identifiers.
func SupportedTypes() []string {
	return []string{TypeText, TypePDF, TypeDocx, TypeDoc}
}
