package rag

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrModelUnavailable = errors.New("embedding model unavailable")
	ErrEmptyIndex       = errors.New("no document has been indexed")
)
