// Package testutil provides in-memory collaborators for package tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petervdpas/cipherstudio/internal/content"
)

// Call records one backend invocation.
type Call struct {
	Op        string
	ProjectID string
	Path      string
	NewPath   string
	Content   string
}

// MemoryBackend is a content.Backend kept in a map.
type MemoryBackend struct {
	mu    sync.Mutex
	files map[string]map[string]content.FileRecord
	calls []Call

	hookFn func(op string) error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{files: make(map[string]map[string]content.FileRecord)}
}

// Seed inserts records directly, bypassing the hook and the call log.
func (m *MemoryBackend) Seed(projectID string, recs ...content.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		r.ProjectID = projectID
		m.project(projectID)[r.Path] = r
	}
}

// Calls returns the logged mutations (ListFiles is not logged).
func (m *MemoryBackend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsOf returns the logged calls with the given op name.
func (m *MemoryBackend) CallsOf(op string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Content returns the stored content at path.
func (m *MemoryBackend) Content(projectID, path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.project(projectID)[path]
	return r.Content, ok
}

func (m *MemoryBackend) ListFiles(ctx context.Context, projectID string) ([]content.FileRecord, error) {
	if err := m.hook("list"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]content.FileRecord, 0, len(m.files[projectID]))
	for _, r := range m.files[projectID] {
		out = append(out, r)
	}
	content.SortByPath(out)
	return out, nil
}

func (m *MemoryBackend) InsertFile(ctx context.Context, rec content.FileRecord) error {
	if err := m.hook("insert"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "insert", ProjectID: rec.ProjectID, Path: rec.Path, Content: rec.Content})
	files := m.project(rec.ProjectID)
	if _, ok := files[rec.Path]; ok {
		return content.ErrDuplicatePath
	}
	now := time.Now().UTC()
	rec.ID = uuid.NewString()
	rec.CreatedAt, rec.UpdatedAt = now, now
	files[rec.Path] = rec
	return nil
}

func (m *MemoryBackend) UpdateFileContent(ctx context.Context, projectID, path, body string) error {
	if err := m.hook("update"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "update", ProjectID: projectID, Path: path, Content: body})
	files := m.project(projectID)
	r, ok := files[path]
	if !ok {
		return content.ErrNotFound
	}
	r.Content = body
	r.UpdatedAt = time.Now().UTC()
	files[path] = r
	return nil
}

func (m *MemoryBackend) UpdateFilePath(ctx context.Context, projectID, oldPath, newPath string) error {
	if err := m.hook("rename"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "rename", ProjectID: projectID, Path: oldPath, NewPath: newPath})
	files := m.project(projectID)
	r, ok := files[oldPath]
	if !ok {
		return content.ErrNotFound
	}
	if _, taken := files[newPath]; taken {
		return content.ErrDuplicatePath
	}
	delete(files, oldPath)
	r.Path = newPath
	files[newPath] = r
	return nil
}

func (m *MemoryBackend) DeleteFile(ctx context.Context, projectID, path string) error {
	if err := m.hook("delete"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Op: "delete", ProjectID: projectID, Path: path})
	files := m.project(projectID)
	if _, ok := files[path]; !ok {
		return content.ErrNotFound
	}
	delete(files, path)
	return nil
}

func (m *MemoryBackend) hook(op string) error {
	m.mu.Lock()
	h := m.hookFn
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(op)
}

// SetHook installs a function that runs before every operation; a non-nil
// return aborts the operation with that error. The hook may block.
func (m *MemoryBackend) SetHook(h func(op string) error) {
	m.mu.Lock()
	m.hookFn = h
	m.mu.Unlock()
}

func (m *MemoryBackend) project(id string) map[string]content.FileRecord {
	files, ok := m.files[id]
	if !ok {
		files = make(map[string]content.FileRecord)
		m.files[id] = files
	}
	return files
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
