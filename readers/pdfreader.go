package readers

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv/v2"
)

var pdfMagic = []byte("%PDF-")

type PdfReader struct {
}

func (r *PdfReader) Format() Format {
	return Pdf
}

// Extract returns the text of every page in document order. Page breaks are
// dropped so the pages read as one continuous text.
func (r *PdfReader) Extract(data []byte) (string, error) {
	if !bytes.HasPrefix(data, pdfMagic) {
		return "", fmt.Errorf("%w: missing pdf header", ErrExtraction)
	}

	body, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read pdf document: %w", ErrExtraction, err)
	}

	return strings.ReplaceAll(body, "\f", ""), nil
}
