// Package docsource reads project documents from disk as plain text.
package docsource

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/ledongthuc/pdf"

	"github.com/cipher241/Smart-Cities-Banorte/internal/jsonrecover"
)

// MinUsefulChars is the shortest extracted text worth sending to a model.
const MinUsefulChars = 100

// TruncationMarker separates the head and tail of a truncated document.
const TruncationMarker = "\n\n[...TRUNCADO...]\n\n"

// ErrUnsupported is returned for file types that cannot be read.
var ErrUnsupported = errors.New("unsupported document type")

// Supported reports whether Extract can read path, judging by its extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".html", ".htm":
		return true
	}
	return false
}

// Extract returns the text of a PDF, plain-text or HTML document. HTML is
// converted to markdown so headings and tables survive as text.
func Extract(path string) (jsonrecover.RawText, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = pdfText(path)
	case ".txt":
		text, err = plainText(path)
	case ".html", ".htm":
		text, err = htmlText(path)
	default:
		return jsonrecover.RawText{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	if err != nil {
		return jsonrecover.RawText{}, err
	}
	return jsonrecover.RawText{Text: strings.TrimSpace(sanitize(text)), Origin: jsonrecover.FromFile}, nil
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return string(data), nil
}

func htmlText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	md, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return md, nil
}

func sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

// Sufficient reports whether text is long enough to analyze.
func Sufficient(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinUsefulChars
}

// Truncate shortens text to max characters by keeping the first 70% and the
// last 30%, joined by TruncationMarker. Text within the limit is returned
// unchanged.
func Truncate(text string, max int) string {
	r := []rune(text)
	if max <= 0 || len(r) <= max {
		return text
	}
	head := max * 7 / 10
	tail := max - head
	return string(r[:head]) + TruncationMarker + string(r[len(r)-tail:])
}
