// Package editor holds the open-file slot of a project view: the selected
// path, its unsaved buffer and the autosave/discard policy around it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/cipherstudio/internal/content"
)

var log = logging.Logger("editor")

// DefaultAutosaveDelay is the quiet period after the last edit before an autosave fires.
const DefaultAutosaveDelay = time.Second

var (
	ErrDiscardDeclined = errors.New("discard of unsaved changes declined")
	ErrClosed          = errors.New("session closed")

	// ErrNoSelection is returned by buffer operations while no file is selected.
	ErrNoSelection error = &content.ValidationError{Field: "selection", Reason: "no file selected"}
)

// State is the session's position in the Empty/Clean/Dirty machine.
type State int

const (
	StateEmpty State = iota
	StateClean
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	}
	return "empty"
}

// ConfirmFunc is asked before unsaved changes to path are discarded.
// Returning false keeps the current selection.
type ConfirmFunc func(ctx context.Context, path string) bool

// Options configure a Session. Zero values pick the defaults.
type Options struct {
	Autosave bool
	Delay    time.Duration
	Clock    clock.Clock
	Confirm  ConfirmFunc

	// OnSave is called after every autosave attempt with its result.
	OnSave func(path string, err error)
}

// View is a point-in-time copy of the session state.
type View struct {
	Path     string `json:"path,omitempty"`
	Buffer   string `json:"buffer"`
	Dirty    bool   `json:"dirty"`
	State    string `json:"state"`
	Language string `json:"language,omitempty"`
	Autosave bool   `json:"autosave"`
}

// Session owns the buffer of the selected file of one project view. It is the
// only holder of unsaved text; persisted content goes through its Store.
type Session struct {
	store   *content.Store
	clock   clock.Clock
	delay   time.Duration
	confirm ConfirmFunc
	onSave  func(string, error)

	ctx    context.Context // cancelled by Close
	cancel context.CancelFunc

	// saveMu is held across backend writes so saves resolve in issue order
	// and renames/deletes never interleave with a pending write.
	saveMu sync.Mutex

	mu        sync.Mutex
	selected  string
	buffer    string
	persisted string
	gen       uint64 // bumped on every selection change
	autosave  bool
	timer     *clock.Timer
	timerSeq  uint64
	closed    bool
}

// NewSession creates an Empty session over store.
func NewSession(store *content.Store, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultAutosaveDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		store:    store,
		clock:    opts.Clock,
		delay:    opts.Delay,
		confirm:  opts.Confirm,
		onSave:   opts.OnSave,
		ctx:      ctx,
		cancel:   cancel,
		autosave: opts.Autosave,
	}
}

func (s *Session) Store() *content.Store { return s.store }

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Selected returns the selected path, or "" when Empty.
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// Dirty reports whether the buffer differs from the last persisted content.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Path:     s.selected,
		Buffer:   s.buffer,
		Dirty:    s.dirtyLocked(),
		State:    s.stateLocked().String(),
		Autosave: s.autosave,
	}
	if s.selected != "" {
		v.Language = content.LanguageFor(s.selected)
	}
	return v
}

// Select opens path using the session's configured ConfirmFunc.
func (s *Session) Select(ctx context.Context, path string) error {
	return s.SelectWith(ctx, path, s.confirm)
}

// SelectWith opens path, asking confirm before discarding unsaved changes.
// A nil confirm declines every discard.
func (s *Session) SelectWith(ctx context.Context, path string, confirm ConfirmFunc) error {
	p, err := content.CleanPath(path)
	if err != nil {
		return err
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	rec, ok := s.store.Get(p)
	if !ok {
		return fmt.Errorf("select %s: %w", p, content.ErrNotFound)
	}
	if rec.IsFolder {
		return &content.ValidationError{Field: "path", Value: p, Reason: "folders cannot be opened"}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.selected == p {
		s.mu.Unlock()
		return nil
	}
	current, dirty, gen := s.selected, s.dirtyLocked(), s.gen
	s.mu.Unlock()

	if dirty && (confirm == nil || !confirm(ctx, current)) {
		log.Debugf("discard of %s declined, staying", current)
		return ErrDiscardDeclined
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.gen != gen {
		// selection moved while the prompt was open
		return ErrDiscardDeclined
	}
	s.stopTimerLocked()
	s.selected = p
	s.buffer = rec.Content
	s.persisted = rec.Content
	s.gen++
	log.Debugf("selected %s", p)
	return nil
}

// Edit replaces the buffer. Edits are never blocked by a pending save.
func (s *Session) Edit(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.selected == "" {
		return ErrNoSelection
	}
	s.buffer = text
	if s.dirtyLocked() {
		if s.autosave {
			s.armLocked()
		}
	} else {
		s.stopTimerLocked()
	}
	return nil
}

// Save writes the buffer as it is now. Edits made while the write is in
// flight leave the session dirty once it resolves. A failed write keeps the
// session dirty and is returned; nothing is retried.
func (s *Session) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.selected == "" {
		s.mu.Unlock()
		return ErrNoSelection
	}
	s.stopTimerLocked()
	if !s.dirtyLocked() {
		s.mu.Unlock()
		return nil
	}
	p, gen, snapshot := s.selected, s.gen, s.buffer
	s.mu.Unlock()

	err := s.store.Update(ctx, p, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warnf("save %s: %v", p, err)
		if !landed(err) {
			return err
		}
	}
	if s.gen == gen && s.selected == p {
		s.persisted = snapshot
		if !s.dirtyLocked() {
			s.stopTimerLocked()
		}
	}
	log.Debugf("saved %s (%d bytes, dirty=%v)", p, len(snapshot), s.dirtyLocked())
	return err
}

// SetAutosave toggles autosave. Enabling it while dirty arms the timer.
func (s *Session) SetAutosave(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autosave = on
	if !on {
		s.stopTimerLocked()
		return
	}
	if !s.closed && s.dirtyLocked() {
		s.armLocked()
	}
}

// CreateFile creates a record and selects it when it is a file.
func (s *Session) CreateFile(ctx context.Context, path string, isFolder bool) error {
	if s.isClosed() {
		return ErrClosed
	}
	p, err := content.CleanPath(path)
	if err != nil {
		return err
	}
	if err := s.store.Create(ctx, p, "", isFolder); err != nil {
		return err
	}
	if isFolder {
		return nil
	}
	return s.Select(ctx, p)
}

// Rename moves a record (and its descendants) and keeps the selection on
// the moved file together with its buffer.
func (s *Session) Rename(ctx context.Context, oldPath, newPath string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	err := s.store.Rename(ctx, oldPath, newPath)
	if err != nil && !landed(err) {
		return err
	}
	oldPath, _ = content.CleanPath(oldPath)
	newPath, _ = content.CleanPath(newPath)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == oldPath || content.IsUnder(s.selected, oldPath) {
		s.selected = content.Rebase(s.selected, oldPath, newPath)
		log.Debugf("selection follows rename to %s", s.selected)
	}
	return err
}

// Delete removes a record (and its descendants). When the selection goes
// with it the session becomes Empty and its buffer is dropped.
func (s *Session) Delete(ctx context.Context, path string) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	err := s.store.Delete(ctx, path)
	if err != nil && !landed(err) {
		return err
	}
	p, _ := content.CleanPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == p || content.IsUnder(s.selected, p) {
		s.clearLocked()
	}
	return err
}

// landed reports whether err came after the write reached the backend.
func landed(err error) bool {
	var re *content.ReloadError
	return errors.As(err, &re)
}

// Refresh reloads the store and reconciles the selection with it. A clean
// buffer adopts the stored content; a dirty buffer is kept and compared
// against the new stored content. A selection whose record vanished is
// dropped unless it holds unsaved changes.
func (s *Session) Refresh(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := s.store.Reload(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return nil
	}
	rec, ok := s.store.Get(s.selected)
	switch {
	case !ok && !s.dirtyLocked():
		log.Debugf("%s vanished, clearing selection", s.selected)
		s.clearLocked()
	case !ok:
		log.Warnf("%s vanished with unsaved changes", s.selected)
	case s.dirtyLocked():
		s.persisted = rec.Content
		if !s.dirtyLocked() {
			s.stopTimerLocked()
		}
	default:
		s.buffer = rec.Content
		s.persisted = rec.Content
	}
	return nil
}

// Close empties the session and cancels any pending autosave.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.clearLocked()
	s.cancel()
}

func (s *Session) armLocked() {
	s.stopTimerLocked()
	s.timerSeq++
	seq := s.timerSeq
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(seq) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// a callback already in flight sees a stale sequence and does nothing
	s.timerSeq++
}

func (s *Session) fire(seq uint64) {
	s.mu.Lock()
	if s.closed || !s.autosave || seq != s.timerSeq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	p := s.selected
	s.mu.Unlock()

	err := s.Save(s.ctx)
	if errors.Is(err, ErrClosed) {
		return
	}
	if err != nil {
		log.Errorf("autosave %s: %v", p, err)
	}
	if s.onSave != nil {
		s.onSave(p, err)
	}
}

func (s *Session) clearLocked() {
	s.stopTimerLocked()
	s.selected = ""
	s.buffer = ""
	s.persisted = ""
	s.gen++
}

func (s *Session) dirtyLocked() bool {
	return s.selected != "" && s.buffer != s.persisted
}

func (s *Session) stateLocked() State {
	switch {
	case s.selected == "":
		return StateEmpty
	case s.buffer != s.persisted:
		return StateDirty
	}
	return StateClean
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) ensureLoaded(ctx context.Context) error {
	if s.store.Loaded() {
		return nil
	}
	return s.store.Reload(ctx)
}
