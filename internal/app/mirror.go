package app

import (
	"context"
	"fmt"

	"github.com/petervdpas/cipherstudio/internal/config"
	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/editor"
	"github.com/petervdpas/cipherstudio/internal/mirror"
	"github.com/petervdpas/cipherstudio/internal/preview"
	"github.com/petervdpas/cipherstudio/internal/storage"
)

// mirrorRun keeps one project and one directory in step in both directions.
type mirrorRun struct {
	watcher *mirror.Watcher
	unsub   func()
	done    chan struct{}
}

func startMirror(ctx context.Context, db *storage.DB, sessions *editor.Manager, hub *preview.Hub, root string, mc config.Mirror) (*mirrorRun, error) {
	pid := mc.Project
	if _, err := db.GetProject(ctx, pid); err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	d, err := mirror.NewDir(root)
	if err != nil {
		return nil, fmt.Errorf("mirror dir: %w", err)
	}

	store := content.NewStore(db, pid)
	if err := store.Reload(ctx); err != nil {
		return nil, err
	}

	// disk wins on startup, then the merged set is written back out
	scanned, err := d.Scan()
	if err != nil {
		return nil, fmt.Errorf("mirror scan: %w", err)
	}
	if _, err := mirror.Import(ctx, store, scanned, mc.Prune); err != nil {
		return nil, fmt.Errorf("mirror import: %w", err)
	}
	if _, err := mirror.Sync(ctx, d, store.Files()); err != nil {
		return nil, fmt.Errorf("mirror sync: %w", err)
	}

	w, err := mirror.Watch(ctx, d, store, func() {
		if err := sessions.RefreshProject(ctx, pid); err != nil {
			log.Warnf("mirror: refresh sessions: %v", err)
		}
		hub.Publish(pid, store.Files())
	})
	if err != nil {
		return nil, err
	}

	// every snapshot means the project moved; write it back to disk
	ch, unsub := hub.Subscribe(pid)
	m := &mirrorRun{watcher: w, unsub: unsub, done: make(chan struct{})}
	go func() {
		defer close(m.done)
		for range ch {
			if err := store.Reload(ctx); err != nil {
				log.Warnf("mirror: reload: %v", err)
				continue
			}
			if _, err := mirror.Sync(ctx, d, store.Files()); err != nil {
				log.Warnf("mirror: %v", err)
			}
		}
	}()

	log.Infof("mirroring project %s to %s", pid, d.Root())
	return m, nil
}

func (m *mirrorRun) Close() error {
	err := m.watcher.Close()
	m.unsub()
	<-m.done
	return err
}
