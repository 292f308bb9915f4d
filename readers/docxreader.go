package readers

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv/v2"
)

var zipMagic = []byte("PK\x03\x04")

type DocxReader struct {
}

func (r *DocxReader) Format() Format {
	return Docx
}

// Extract returns paragraph text in document order, each paragraph ending
// with a newline.
func (r *DocxReader) Extract(data []byte) (string, error) {
	if !bytes.HasPrefix(data, zipMagic) {
		return "", fmt.Errorf("%w: docx is not a zip archive", ErrExtraction)
	}

	body, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read docx document: %w", ErrExtraction, err)
	}

	// docconv terminates the body with one newline more than the last
	// paragraph needs.
	if strings.HasSuffix(body, "\n\n") {
		body = strings.TrimSuffix(body, "\n")
	}

	return body, nil
}
