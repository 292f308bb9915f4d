package readers

import (
	"fmt"
	"unicode/utf8"
)

type TxtReader struct{}

func (r *TxtReader) Format() Format {
	return Txt
}

func (r *TxtReader) Extract(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: invalid byte sequence", ErrDecoding)
	}

	return string(data), nil
}
