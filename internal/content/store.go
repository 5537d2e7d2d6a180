package content

import (
	"context"
	"fmt"
	"sort"
	"sync"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("content")

// Store holds the authoritative record set of one open project.
//
// Every mutation is written to the backend and followed by a full reload, so
// the in-memory set always mirrors what the backend last reported.
type Store struct {
	backend   Backend
	projectID string

	reloadMu sync.Mutex // serializes list+apply so an older listing never wins

	mu     sync.RWMutex
	files  []FileRecord
	index  map[string]int
	loaded bool
	err    error

	listenerMu sync.RWMutex
	listeners  map[chan []FileRecord]struct{}
}

// NewStore creates a store for projectID. Call Reload before reading.
func NewStore(b Backend, projectID string) *Store {
	return &Store{
		backend:   b,
		projectID: projectID,
		index:     make(map[string]int),
		listeners: make(map[chan []FileRecord]struct{}),
	}
}

func (s *Store) ProjectID() string { return s.projectID }

// Reload replaces the local record set with the backend's listing.
func (s *Store) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	files, err := s.backend.ListFiles(ctx, s.projectID)
	if err != nil {
		return s.fail(classify("list files", err))
	}

	index := make(map[string]int, len(files))
	for i, f := range files {
		index[f.Path] = i
	}

	s.mu.Lock()
	s.files = files
	s.index = index
	s.loaded = true
	s.err = nil
	s.mu.Unlock()

	s.notify(Documents(files))
	return nil
}

// Loaded reports whether at least one Reload succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Err returns the error of the last failed operation, cleared by a successful reload.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Files returns a copy of the current records in backend order.
func (s *Store) Files() []FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FileRecord, len(s.files))
	copy(out, s.files)
	return out
}

// Get returns the record stored at p.
func (s *Store) Get(p string) (FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[p]
	if !ok {
		return FileRecord{}, false
	}
	return s.files[i], true
}

// Tree materializes the current records.
func (s *Store) Tree() []*TreeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Materialize(s.files)
}

// Create inserts a new file or folder. Folder content is always empty.
// A file cannot take the path of a folder, implicit or not, and nothing can
// be created below a file.
func (s *Store) Create(ctx context.Context, p, body string, isFolder bool) error {
	p, err := CleanPath(p)
	if err != nil {
		return s.fail(err)
	}
	if isFolder {
		body = ""
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	err = s.kindConflictLocked(p, isFolder, nil)
	s.mu.RUnlock()
	if err != nil {
		return s.fail(fmt.Errorf("create %s: %w", p, err))
	}

	rec := FileRecord{
		ProjectID: s.projectID,
		Path:      p,
		Content:   body,
		IsFolder:  isFolder,
	}
	if err := s.backend.InsertFile(ctx, rec); err != nil {
		return s.fail(classify("create "+p, err))
	}
	log.Debugf("created %s in project %s (folder=%v)", p, s.projectID, isFolder)
	return s.reloadAfter(ctx, "create "+p)
}

// Update overwrites the content of the file at p.
func (s *Store) Update(ctx context.Context, p, body string) error {
	p, err := CleanPath(p)
	if err != nil {
		return s.fail(err)
	}
	if rec, ok := s.Get(p); ok && rec.IsFolder {
		return s.fail(&ValidationError{Field: "path", Value: p, Reason: "folders have no content"})
	}

	if err := s.backend.UpdateFileContent(ctx, s.projectID, p, body); err != nil {
		return s.fail(classify("update "+p, err))
	}
	log.Debugf("updated %s in project %s (%d bytes)", p, s.projectID, len(body))
	return s.reloadAfter(ctx, "update "+p)
}

// Rename moves the record at oldPath to newPath together with every record
// below oldPath. oldPath may be an implicit folder that only has descendants.
func (s *Store) Rename(ctx context.Context, oldPath, newPath string) error {
	oldPath, err := CleanPath(oldPath)
	if err != nil {
		return s.fail(err)
	}
	newPath, err = CleanPath(newPath)
	if err != nil {
		return s.fail(err)
	}
	if IsUnder(newPath, oldPath) {
		return s.fail(&ValidationError{Field: "path", Value: newPath, Reason: "cannot move a folder into itself"})
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	moved := s.subtree(oldPath)
	if len(moved) == 0 {
		return s.fail(fmt.Errorf("rename %s: %w", oldPath, ErrNotFound))
	}
	if oldPath == newPath {
		return nil
	}

	skip := make(map[string]bool, len(moved))
	for _, p := range moved {
		skip[p] = true
	}
	s.mu.RLock()
	for _, p := range moved {
		target := Rebase(p, oldPath, newPath)
		err := s.kindConflictLocked(target, s.isFolderLocked(p), skip)
		if _, taken := s.index[target]; taken && !skip[target] {
			err = fmt.Errorf("%s: %w", target, ErrDuplicatePath)
		}
		if err != nil {
			s.mu.RUnlock()
			return s.fail(fmt.Errorf("rename %s: %w", oldPath, err))
		}
	}
	s.mu.RUnlock()

	for i, p := range moved {
		target := Rebase(p, oldPath, newPath)
		if err := s.backend.UpdateFilePath(ctx, s.projectID, p, target); err != nil {
			err = s.fail(classify("rename "+p, err))
			if i > 0 {
				log.Warnf("rename %s stopped after %d of %d records: %v", oldPath, i, len(moved), err)
				_ = s.Reload(ctx)
				s.fail(err)
			}
			return err
		}
	}
	log.Debugf("renamed %s -> %s in project %s (%d records)", oldPath, newPath, s.projectID, len(moved))
	return s.reloadAfter(ctx, "rename "+oldPath)
}

// Delete removes the record at p and every record below it.
func (s *Store) Delete(ctx context.Context, p string) error {
	p, err := CleanPath(p)
	if err != nil {
		return s.fail(err)
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	doomed := s.subtree(p)
	if len(doomed) == 0 {
		return s.fail(fmt.Errorf("delete %s: %w", p, ErrNotFound))
	}

	for i, d := range doomed {
		if err := s.backend.DeleteFile(ctx, s.projectID, d); err != nil {
			err = s.fail(classify("delete "+d, err))
			if i > 0 {
				log.Warnf("delete %s stopped after %d of %d records: %v", p, i, len(doomed), err)
				_ = s.Reload(ctx)
				s.fail(err)
			}
			return err
		}
	}
	log.Debugf("deleted %s in project %s (%d records)", p, s.projectID, len(doomed))
	return s.reloadAfter(ctx, "delete "+p)
}

// Subscribe returns a channel that receives the non-folder record set after
// every successful reload. A slow reader only sees the latest set.
func (s *Store) Subscribe() (ch chan []FileRecord, cancel func()) {
	ch = make(chan []FileRecord, 1)

	s.listenerMu.Lock()
	s.listeners[ch] = struct{}{}
	s.listenerMu.Unlock()

	cancel = func() {
		s.listenerMu.Lock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
		s.listenerMu.Unlock()
	}
	return ch, cancel
}

// notify runs under reloadMu, so sends never race each other.
func (s *Store) notify(docs []FileRecord) {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	for ch := range s.listeners {
		select {
		case <-ch: // replace an unread set
		default:
		}
		select {
		case ch <- docs:
		default:
		}
	}
}

// subtree returns p (if it is a record) followed by all records below it, in
// path order. A file record never has a subtree.
func (s *Store) subtree(p string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	if i, ok := s.index[p]; ok {
		if !s.files[i].IsFolder {
			return []string{p}
		}
		out = append(out, p)
	}
	var below []string
	for _, f := range s.files {
		if IsUnder(f.Path, p) {
			below = append(below, f.Path)
		}
	}
	sort.Strings(below)
	return append(out, below...)
}

// kindConflictLocked reports whether a record of the given kind at p would
// clash with a file or folder already stored. Paths in skip are ignored.
func (s *Store) kindConflictLocked(p string, isFolder bool, skip map[string]bool) error {
	for a := Parent(p); a != "/"; a = Parent(a) {
		if i, ok := s.index[a]; ok && !skip[a] && !s.files[i].IsFolder {
			return fmt.Errorf("%s is a file: %w", a, ErrDuplicatePath)
		}
	}
	if isFolder {
		return nil
	}
	for _, f := range s.files {
		if !skip[f.Path] && IsUnder(f.Path, p) {
			return fmt.Errorf("%s is a folder: %w", p, ErrDuplicatePath)
		}
	}
	return nil
}

func (s *Store) isFolderLocked(p string) bool {
	i, ok := s.index[p]
	return !ok || s.files[i].IsFolder
}

// reloadAfter refreshes after a write that already landed. A failed refresh
// comes back as a ReloadError.
func (s *Store) reloadAfter(ctx context.Context, op string) error {
	if err := s.Reload(ctx); err != nil {
		return s.fail(&ReloadError{Op: op, Err: err})
	}
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.Loaded() {
		return nil
	}
	return s.Reload(ctx)
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}
