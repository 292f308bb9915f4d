package rag

import "fmt"

// Chunk is a window of the extracted text. Start is the offset of the first
// character in the source text, counted in runes.
type Chunk struct {
	Index int
	Start int
	Text  string
}

// Split cuts text into windows of size characters, each starting
// size-overlap characters after its predecessor. The last window holds
// whatever remains.
func Split(text string, size int, overlap int) ([]Chunk, error) {
	if overlap < 0 || size <= overlap {
		return nil, fmt.Errorf("%w: chunk size %d must exceed overlap %d >= 0", ErrInvalidParameter, size, overlap)
	}

	runes := []rune(text)
	l := len(runes)
	if l == 0 {
		return []Chunk{}, nil
	}

	step := size - overlap
	pos := 0
	res := make([]Chunk, 0, l/step+1)

	for {
		end := min(pos+size, l)
		res = append(res, Chunk{
			Index: len(res),
			Start: pos,
			Text:  string(runes[pos:end]),
		})
		if end >= l {
			break
		}

		pos += step
	}

	return res, nil
}

// Chunkifier splits extracted text into chunks.
type Chunkifier interface {
	Chunkify(text string) ([]Chunk, error)
}

// DefaultChunkifier is the fixed-width sliding window of Split.
type DefaultChunkifier struct {
	ChunkSize    int
	ChunkOverlap int
}

func (c *DefaultChunkifier) Chunkify(text string) ([]Chunk, error) {
	return Split(text, c.ChunkSize, c.ChunkOverlap)
}

// Texts returns the chunk texts in index order.
func Texts(chunks []Chunk) []string {
	res := make([]string, len(chunks))
	for i, c := range chunks {
		res[i] = c.Text
	}

	return res
}
