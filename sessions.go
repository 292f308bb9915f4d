package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gamma-omg/doc-chat/rag"
	"github.com/google/uuid"
)

var ErrOutsideRoot = errors.New("document is outside the document root")

type TextExtractor interface {
	ReadFile(path string) (string, error)
}

type Indexer interface {
	Index(ctx context.Context, text string) (*rag.Session, error)
}

type boundSession struct {
	File    string
	Session *rag.Session
}

// SessionRegistry keeps one indexed document per session id. Uploading to an
// existing id discards its index and builds a new one.
type SessionRegistry struct {
	log              *slog.Logger
	root             string
	extractor        TextExtractor
	indexer          Indexer
	mergeEventsDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*boundSession
	watcher  *fsnotify.Watcher
	watched  map[string]struct{}
	pending  map[string]*time.Timer
}

// NewSessionRegistry creates a registry that only reads documents below root.
// Relative upload paths are resolved against root. An empty root allows any
// path.
func NewSessionRegistry(log *slog.Logger, root string, extractor TextExtractor, indexer Indexer, mergeEventsDelay time.Duration) *SessionRegistry {
	return &SessionRegistry{
		log:              log,
		root:             root,
		extractor:        extractor,
		indexer:          indexer,
		mergeEventsDelay: mergeEventsDelay,
		sessions:         make(map[string]*boundSession),
		watched:          make(map[string]struct{}),
		pending:          make(map[string]*time.Timer),
	}
}

// Upload extracts and indexes the file at path under sessionID. An empty
// sessionID starts a new session. The id used is returned.
func (sr *SessionRegistry) Upload(ctx context.Context, sessionID string, path string) (string, *rag.Session, error) {
	file, err := sr.resolve(path)
	if err != nil {
		return "", nil, err
	}

	text, err := sr.extractor.ReadFile(file)
	if err != nil {
		return "", nil, err
	}

	s, err := sr.indexer.Index(ctx, text)
	if err != nil {
		return "", nil, fmt.Errorf("failed to index document %s: %w", file, err)
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sr.mu.Lock()
	old := sr.sessions[sessionID]
	sr.sessions[sessionID] = &boundSession{File: file, Session: s}
	watchErr := sr.watchDir(filepath.Dir(file))
	sr.mu.Unlock()

	if old != nil {
		if err := old.Session.Close(ctx); err != nil {
			sr.log.Warn("failed to release previous index", slog.String("session", sessionID), slog.String("error", err.Error()))
		}
	}
	if watchErr != nil {
		sr.log.Warn("failed to watch document", slog.String("file", file), slog.String("error", watchErr.Error()))
	}

	sr.log.Info("document uploaded",
		slog.String("session", sessionID),
		slog.String("file", file),
		slog.Int("chunks", len(s.Chunks())))

	return sessionID, s, nil
}

func (sr *SessionRegistry) resolve(path string) (string, error) {
	if sr.root == "" {
		file, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		return file, nil
	}

	root, err := filepath.Abs(sr.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve document root %s: %w", sr.root, err)
	}

	file := path
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	file = filepath.Clean(file)

	if !within(root, file) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	// Links inside the root must not lead out of it.
	realRoot, rootErr := filepath.EvalSymlinks(root)
	realFile, fileErr := filepath.EvalSymlinks(file)
	if rootErr == nil && fileErr == nil && !within(realRoot, realFile) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}

	return file, nil
}

func within(root, file string) bool {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Get returns the session for id, or rag.ErrEmptyIndex if nothing has been
// uploaded under it.
func (sr *SessionRegistry) Get(sessionID string) (*rag.Session, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	b, ok := sr.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, rag.ErrEmptyIndex)
	}

	return b.Session, nil
}

// Forget drops a session and releases its index.
func (sr *SessionRegistry) Forget(ctx context.Context, sessionID string) error {
	sr.mu.Lock()
	b, ok := sr.sessions[sessionID]
	delete(sr.sessions, sessionID)
	sr.mu.Unlock()

	if !ok {
		return nil
	}

	return b.Session.Close(ctx)
}

// Close forgets every session.
func (sr *SessionRegistry) Close(ctx context.Context) error {
	sr.mu.Lock()
	ids := make([]string, 0, len(sr.sessions))
	for id := range sr.sessions {
		ids = append(ids, id)
	}
	sr.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := sr.Forget(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (sr *SessionRegistry) sessionsForFile(file string) []string {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	var ids []string
	for id, b := range sr.sessions {
		if b.File == file {
			ids = append(ids, id)
		}
	}

	return ids
}

// Watch rebuilds the sessions bound to a file whenever the file is written.
// Bursts of events within mergeEventsDelay cause a single rebuild. Watching
// stops when ctx is done.
func (sr *SessionRegistry) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	sr.mu.Lock()
	sr.watcher = w
	for _, b := range sr.sessions {
		if err := sr.watchDir(filepath.Dir(b.File)); err != nil {
			sr.mu.Unlock()
			_ = w.Close()
			return err
		}
	}
	sr.mu.Unlock()

	go func() {
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				sr.mu.Lock()
				for _, t := range sr.pending {
					t.Stop()
				}
				sr.watcher = nil
				sr.mu.Unlock()
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
					sr.scheduleReindex(ctx, filepath.Clean(e.Name))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				sr.log.Error("watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}

// watchDir must be called with sr.mu held.
func (sr *SessionRegistry) watchDir(dir string) error {
	if sr.watcher == nil {
		return nil
	}
	if _, ok := sr.watched[dir]; ok {
		return nil
	}

	if err := sr.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	sr.watched[dir] = struct{}{}
	return nil
}

func (sr *SessionRegistry) scheduleReindex(ctx context.Context, file string) {
	if len(sr.sessionsForFile(file)) == 0 {
		return
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	if t, ok := sr.pending[file]; ok {
		t.Reset(sr.mergeEventsDelay)
		return
	}

	sr.pending[file] = time.AfterFunc(sr.mergeEventsDelay, func() {
		sr.mu.Lock()
		delete(sr.pending, file)
		sr.mu.Unlock()

		sr.reindex(ctx, file)
	})
}

func (sr *SessionRegistry) reindex(ctx context.Context, file string) {
	for _, id := range sr.sessionsForFile(file) {
		if _, _, err := sr.Upload(ctx, id, file); err != nil {
			sr.log.Warn("failed to re-index document, keeping previous index",
				slog.String("session", id),
				slog.String("file", file),
				slog.String("error", err.Error()))
			continue
		}

		sr.log.Info("document re-indexed", slog.String("session", id), slog.String("file", file))
	}
}
