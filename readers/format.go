package readers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the declared type of an uploaded document.
type Format string

const (
	Pdf  Format = "pdf"
	Docx Format = "docx"
	Txt  Format = "txt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtraction        = errors.New("failed to extract document text")
	ErrDecoding          = errors.New("document is not valid utf-8 text")
)

// ParseFormat maps a format tag such as "pdf" or ".PDF" to a Format.
func ParseFormat(tag string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(tag, ".")))
	switch f {
	case Pdf, Docx, Txt:
		return f, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, tag)
}

// FormatFromFilename resolves the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filepath.Base(name))
	}

	return ParseFormat(ext)
}
