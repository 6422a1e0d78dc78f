package continuity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrSessionNotFound is returned when no continuity record exists for a
// session. Callers typically respond by creating a fresh Context.
var ErrSessionNotFound = errors.New("session not found")

// Store persists continuity records across turns. Implementations must be
// safe for concurrent use across sessions; the engine guarantees only one
// turn per session touches a record at a time.
type Store interface {
	// Load retrieves the continuity record for a session.
	Load(sessionID string) (*Context, error)
	// Save persists the continuity record for a session.
	Save(sessionID string, ctx *Context) error
}

// MemoryStore keeps continuity records in process memory. Suitable for tests
// and single-process ephemeral runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Context
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Context)}
}

// Load returns a deep copy of the stored record.
func (s *MemoryStore) Load(sessionID string) (*Context, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return ctx.Clone(), nil
}

// Save stores a deep copy of the record.
func (s *MemoryStore) Save(sessionID string, ctx *Context) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = ctx.Clone()
	return nil
}

// FileStore persists one JSON file per session under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file-backed store, creating the directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create continuity directory %s: %w", baseDir, err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Load reads the session's continuity record from disk.
func (s *FileStore) Load(sessionID string) (*Context, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	filename := s.filename(sessionID)
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to read continuity file for %s: %w", sessionID, err)
	}

	var ctx Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal continuity for %s: %w", sessionID, err)
	}
	return &ctx, nil
}

// Save writes the session's continuity record to disk.
func (s *FileStore) Save(sessionID string, ctx *Context) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}

	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal continuity for %s: %w", sessionID, err)
	}

	if err := os.WriteFile(s.filename(sessionID), data, 0644); err != nil {
		return fmt.Errorf("failed to write continuity file for %s: %w", sessionID, err)
	}
	return nil
}

// ListSessions returns session IDs with persisted continuity records.
func (s *FileStore) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read continuity directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "SESSION_") && strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(name, "SESSION_"), ".json"))
		}
	}
	return ids, nil
}

func (s *FileStore) filename(sessionID string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("SESSION_%s.json", sessionID))
}
