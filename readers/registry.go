package readers

import (
	"fmt"
	"os"
)

type Extractor interface {
	Format() Format
	Extract(data []byte) (string, error)
}

// Registry dispatches extraction to the Extractor registered for a format.
type Registry struct {
	extractors map[Format]Extractor
}

func NewRegistry(extractors ...Extractor) (*Registry, error) {
	r := &Registry{extractors: make(map[Format]Extractor)}
	for _, e := range extractors {
		if _, ok := r.extractors[e.Format()]; ok {
			return nil, fmt.Errorf("extractor already registered for format %s", e.Format())
		}

		r.extractors[e.Format()] = e
	}

	return r, nil
}

// Default returns a registry that handles pdf, docx and txt documents.
func Default() *Registry {
	return &Registry{extractors: map[Format]Extractor{
		Pdf:  &PdfReader{},
		Docx: &DocxReader{},
		Txt:  &TxtReader{},
	}}
}

func (r *Registry) Extract(data []byte, format Format) (string, error) {
	e, ok := r.extractors[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return e.Extract(data)
}

// ReadFile extracts the text of the file at path, using its extension as the
// format tag.
func (r *Registry) ReadFile(path string) (string, error) {
	format, err := FormatFromFilename(path)
	if err != nil {
		return "", err
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document %s: %w", path, err)
	}

	text, err := r.Extract(buf, format)
	if err != nil {
		return "", fmt.Errorf("reading document %s: %w", path, err)
	}

	return text, nil
}
