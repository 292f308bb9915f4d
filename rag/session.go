package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const MissingInputWarning = "Please upload a document and enter a question."

// Pipeline turns extracted text into a searchable Session.
type Pipeline struct {
	Log        *slog.Logger
	Chunkifier Chunkifier
	Embedder   Embedder
	Builder    IndexBuilder
}

// Index chunks and embeds text and builds a fresh index over it.
func (p *Pipeline) Index(ctx context.Context, text string) (*Session, error) {
	start := time.Now()

	if p.Chunkifier == nil {
		return nil, fmt.Errorf("%w: pipeline has no chunkifier", ErrInvalidParameter)
	}

	chunks, err := p.Chunkifier.Chunkify(text)
	if err != nil {
		return nil, err
	}

	vectors, err := p.Embedder.EmbedBatch(ctx, Texts(chunks))
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	idx, err := p.Builder.Build(ctx, chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	if p.Log != nil {
		p.Log.Info("document indexed",
			slog.Int("chars", len([]rune(text))),
			slog.Int("chunks", len(chunks)),
			slog.Duration("took", time.Since(start)))
	}

	return &Session{
		text:     text,
		chunks:   chunks,
		vectors:  vectors,
		index:    idx,
		embedder: p.Embedder,
		log:      p.Log,
	}, nil
}

// Exchange is one question and the answer shown for it.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Answer is the outcome of a question. Err holds the generation failure, if
// any; Text is then a displayable description of it.
type Answer struct {
	Text string
	Err  error
}

// Session is the indexed state of one uploaded document.
type Session struct {
	text     string
	chunks   []Chunk
	vectors  [][]float32
	index    Index
	embedder Embedder
	log      *slog.Logger

	mu      sync.Mutex
	history []Exchange
}

func (s *Session) Text() string {
	if s == nil {
		return ""
	}

	return s.text
}

func (s *Session) Chunks() []Chunk {
	if s == nil {
		return nil
	}

	return s.chunks
}

func (s *Session) Vectors() [][]float32 {
	if s == nil {
		return nil
	}

	return s.vectors
}

// Ready reports whether the session holds a non-empty index.
func (s *Session) Ready() bool {
	return s != nil && s.index != nil && s.index.Len() > 0
}

func (s *Session) RetrieveChunks(ctx context.Context, query string, k int) ([]Retrieved, error) {
	if !s.Ready() {
		return nil, ErrEmptyIndex
	}

	return RetrieveChunks(ctx, s.embedder, s.index, s.chunks, query, k)
}

func (s *Session) Retrieve(ctx context.Context, query string, k int) (string, error) {
	if !s.Ready() {
		return "", ErrEmptyIndex
	}

	return Retrieve(ctx, s.embedder, s.index, s.chunks, query, k)
}

// Ask answers question from the k most relevant chunks. The returned error
// covers retrieval only; a failed generation is reported through Answer.Err
// and still recorded in the history.
func (s *Session) Ask(ctx context.Context, gen Generator, question string, k int) (Answer, error) {
	if !s.Ready() {
		return Answer{}, fmt.Errorf("%w: %s", ErrEmptyIndex, MissingInputWarning)
	}
	if strings.TrimSpace(question) == "" {
		return Answer{}, fmt.Errorf("%w: %s", ErrInvalidParameter, MissingInputWarning)
	}

	retrieved, err := s.Retrieve(ctx, question, k)
	if err != nil {
		return Answer{}, err
	}

	ans := Answer{}
	text, err := gen.Generate(ctx, AssemblePrompt(retrieved, question))
	if err != nil {
		if s.log != nil {
			s.log.Warn("generation failed", slog.String("error", err.Error()))
		}
		ans.Err = err
		ans.Text = fmt.Sprintf("Error: %v", err)
	} else {
		ans.Text = text
	}

	s.mu.Lock()
	s.history = append(s.history, Exchange{Question: question, Answer: ans.Text})
	s.mu.Unlock()

	return ans, nil
}

func (s *Session) History() []Exchange {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]Exchange, len(s.history))
	copy(res, s.history)
	return res
}

type indexCloser interface {
	Close(ctx context.Context) error
}

// Close releases the index when its backend holds external state.
func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.index == nil {
		return nil
	}

	if c, ok := s.index.(indexCloser); ok {
		return c.Close(ctx)
	}

	return nil
}
