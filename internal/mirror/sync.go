package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/petervdpas/cipherstudio/internal/content"
)

// Result counts the record changes of an import.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

func (r Result) Changed() bool { return r.Created+r.Updated+r.Deleted > 0 }

// Export writes every record into d: folders become directories, files are
// written atomically. It returns the number of files written.
func Export(ctx context.Context, d *Dir, files []content.FileRecord) (int, error) {
	n := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if f.IsFolder {
			if err := d.Mkdir(f.Path); err != nil {
				return n, fmt.Errorf("export %s: %w", f.Path, err)
			}
			continue
		}
		if err := d.Write(f.Path, []byte(f.Content)); err != nil {
			return n, fmt.Errorf("export %s: %w", f.Path, err)
		}
		n++
	}
	log.Infof("exported %d files to %s", n, d.Root())
	return n, nil
}

// Import brings the scanned records into store. Missing records are created
// and changed content is updated. With prune, store records that are not on
// disk are deleted.
func Import(ctx context.Context, store *content.Store, scanned []content.FileRecord, prune bool) (Result, error) {
	var res Result
	if !store.Loaded() {
		if err := store.Reload(ctx); err != nil {
			return res, err
		}
	}

	seen := make(map[string]bool, len(scanned))
	for _, rec := range scanned {
		seen[rec.Path] = true
		created, updated, err := upsert(ctx, store, rec)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		}
		if updated {
			res.Updated++
		}
	}

	if prune {
		// deepest first so folder cascades never hit an already removed child
		existing := store.Files()
		for i := len(existing) - 1; i >= 0; i-- {
			p := existing[i].Path
			if seen[p] {
				continue
			}
			if err := store.Delete(ctx, p); err != nil {
				if errors.Is(err, content.ErrNotFound) {
					continue
				}
				return res, err
			}
			res.Deleted++
		}
	}

	if res.Changed() {
		log.Infof("import into %s: %d created, %d updated, %d deleted",
			store.ProjectID(), res.Created, res.Updated, res.Deleted)
	}
	return res, nil
}

// upsert makes store hold rec. Equal content is left alone.
func upsert(ctx context.Context, store *content.Store, rec content.FileRecord) (created, updated bool, err error) {
	cur, ok := store.Get(rec.Path)
	switch {
	case !ok:
		if err := store.Create(ctx, rec.Path, rec.Content, rec.IsFolder); err != nil {
			return false, false, err
		}
		return true, false, nil
	case cur.IsFolder != rec.IsFolder:
		return false, false, fmt.Errorf("%s: %w", rec.Path, ErrConflict)
	case rec.IsFolder || cur.Content == rec.Content:
		return false, false, nil
	}
	if err := store.Update(ctx, rec.Path, rec.Content); err != nil {
		return false, false, err
	}
	return false, true, nil
}

// Sync makes d match files: changed files are rewritten, missing folders
// created, and entries that no longer back a record are removed. Directories
// that still hold records below them stay even without a folder record.
func Sync(ctx context.Context, d *Dir, files []content.FileRecord) (Result, error) {
	var res Result
	want := make(map[string]bool, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		want[f.Path] = true
		for dir := content.Parent(f.Path); dir != "/" && dir != ""; dir = content.Parent(dir) {
			want[dir] = true
		}

		if f.IsFolder {
			if err := d.Mkdir(f.Path); err != nil {
				return res, fmt.Errorf("sync %s: %w", f.Path, err)
			}
			continue
		}
		cur, err := d.Read(f.Path)
		switch {
		case err == nil && string(cur) == f.Content:
			continue
		case err == nil:
			res.Updated++
		case errors.Is(err, content.ErrNotFound):
			res.Created++
		default:
			return res, fmt.Errorf("sync %s: %w", f.Path, err)
		}
		if err := d.Write(f.Path, []byte(f.Content)); err != nil {
			return res, fmt.Errorf("sync %s: %w", f.Path, err)
		}
	}

	scanned, err := d.Scan()
	if err != nil {
		return res, err
	}
	for i := len(scanned) - 1; i >= 0; i-- {
		p := scanned[i].Path
		if want[p] {
			continue
		}
		if err := d.Remove(p); err != nil && !errors.Is(err, content.ErrNotFound) {
			return res, fmt.Errorf("sync remove %s: %w", p, err)
		}
		res.Deleted++
	}

	if res.Changed() {
		log.Debugf("sync %s: %d created, %d updated, %d removed",
			d.Root(), res.Created, res.Updated, res.Deleted)
	}
	return res, nil
}
