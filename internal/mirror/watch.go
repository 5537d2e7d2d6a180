package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/petervdpas/cipherstudio/internal/content"
)

// Watcher imports edits made to a mirror directory by other programs.
type Watcher struct {
	dir      *Dir
	store    *content.Store
	watcher  *fsnotify.Watcher
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Watch starts watching d and applies every change to store. onChange, if
// set, runs after each change that reached the store.
func Watch(ctx context.Context, d *Dir, store *content.Store, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		dir:      d,
		store:    store,
		watcher:  fw,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if err := w.addTree(d.Root()); err != nil {
		cancel()
		fw.Close()
		return nil, err
	}
	go w.watchLoop()
	log.Infof("watching %s for project %s", d.Root(), store.ProjectID())
	return w, nil
}

// Close stops the watcher and waits for the loop to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			changed, err := w.handle(event)
			if err != nil {
				log.Warnf("sync %s: %v", event.Name, err)
			}
			if changed && w.onChange != nil {
				w.onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) (bool, error) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false, nil
	}
	recPath, ok := w.dir.RecordPath(event.Name)
	if !ok {
		return false, nil
	}
	// other writers may have moved the store on since the last event
	if err := w.store.Reload(w.ctx); err != nil {
		return false, err
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		return w.upsertPath(event.Name, recPath)
	}
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		err := w.store.Delete(w.ctx, recPath)
		if errors.Is(err, content.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	return false, nil
}

func (w *Watcher) upsertPath(abs, recPath string) (bool, error) {
	st, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		// gone again before we looked
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !st.IsDir() {
		body, ok, err := readText(abs)
		if err != nil || !ok {
			return false, err
		}
		created, updated, err := upsert(w.ctx, w.store, content.FileRecord{Path: recPath, Content: body})
		return created || updated, err
	}

	// a directory appeared, possibly moved in with contents
	if err := w.addTree(abs); err != nil {
		return false, err
	}
	changed := false
	err = filepath.WalkDir(abs, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != abs && strings.HasPrefix(e.Name(), ".") {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rp, ok := w.dir.RecordPath(p)
		if !ok {
			return nil
		}
		rec := content.FileRecord{Path: rp, IsFolder: e.IsDir()}
		if !e.IsDir() {
			body, ok, err := readText(p)
			if err != nil || !ok {
				return err
			}
			rec.Content = body
		}
		created, updated, err := upsert(w.ctx, w.store, rec)
		changed = changed || created || updated
		return err
	})
	return changed, err
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(e.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}
