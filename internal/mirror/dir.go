// Package mirror keeps a project's records in step with a directory on disk:
// export writes them out, import and the watcher read edits back in.
package mirror

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/cipherstudio/internal/content"
)

var log = logging.Logger("mirror")

var (
	ErrOutsideRoot = errors.New("path outside root")
	ErrConflict    = errors.New("conflict")
)

// MaxFileSize bounds the files Scan will pick up.
const MaxFileSize = 4 << 20

const tempPrefix = ".studio-"

// Dir is a directory holding one project's files, addressed by record path.
type Dir struct {
	root string
}

// NewDir creates root if needed.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	// resolve so symlink checks compare like with like
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Root() string { return d.root }

// Read returns the bytes stored for recPath.
func (d *Dir) Read(recPath string) ([]byte, error) {
	abs, err := d.cleanAbs(recPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, content.ErrNotFound
	}
	return b, err
}

// Write stores data at recPath through a temp file and rename.
func (d *Dir) Write(recPath string, data []byte) error {
	abs, err := d.cleanAbs(recPath)
	if err != nil {
		return err
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() {
		return ErrConflict
	}

	dir := filepath.Dir(abs)
	if err := d.mkdirAllChecked(dir); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Mkdir creates the directory for a folder record.
func (d *Dir) Mkdir(recPath string) error {
	abs, err := d.cleanAbs(recPath)
	if err != nil {
		return err
	}
	return d.mkdirAllChecked(abs)
}

// Remove deletes recPath and everything below it.
func (d *Dir) Remove(recPath string) error {
	abs, err := d.cleanAbs(recPath)
	if err != nil {
		return err
	}
	if abs == d.root {
		return ErrOutsideRoot
	}
	if _, err := os.Lstat(abs); errors.Is(err, os.ErrNotExist) {
		return content.ErrNotFound
	}
	return os.RemoveAll(abs)
}

// Scan walks the directory and returns one record per folder and per text
// file, ordered by path. Hidden entries, oversized and binary files are skipped.
func (d *Dir) Scan() ([]content.FileRecord, error) {
	var out []content.FileRecord
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == d.root {
			return nil
		}
		if strings.HasPrefix(e.Name(), ".") {
			if e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		recPath, ok := d.RecordPath(p)
		if !ok {
			return nil
		}
		if e.IsDir() {
			out = append(out, content.FileRecord{Path: recPath, IsFolder: true})
			return nil
		}
		if !e.Type().IsRegular() {
			return nil
		}
		body, ok, err := readText(p)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, content.FileRecord{Path: recPath, Content: body})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	content.SortByPath(out)
	return out, nil
}

// RecordPath maps an absolute path inside the directory to its record path.
func (d *Dir) RecordPath(abs string) (string, bool) {
	rel, err := filepath.Rel(d.root, filepath.Clean(abs))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	p, err := content.CleanPath("/" + filepath.ToSlash(rel))
	if err != nil {
		return "", false
	}
	return p, true
}

func readText(abs string) (string, bool, error) {
	st, err := os.Stat(abs)
	if err != nil {
		return "", false, err
	}
	if st.Size() > MaxFileSize {
		log.Debugf("skipping %s: %d bytes", abs, st.Size())
		return "", false, nil
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", false, err
	}
	if !utf8.Valid(b) {
		log.Debugf("skipping %s: not text", abs)
		return "", false, nil
	}
	return string(b), true, nil
}

// --- safety boundary ---

func (d *Dir) cleanAbs(recPath string) (string, error) {
	p, err := content.CleanPath(recPath)
	if err != nil {
		return "", err
	}
	abs := filepath.Clean(filepath.Join(d.root, filepath.FromSlash(strings.TrimPrefix(p, "/"))))

	rootPrefix := d.root + string(filepath.Separator)
	if abs != d.root && !strings.HasPrefix(abs, rootPrefix) {
		return "", ErrOutsideRoot
	}

	// prevent symlink escape through the deepest existing ancestor
	for cur := abs; ; cur = filepath.Dir(cur) {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			if real != d.root && !strings.HasPrefix(real, rootPrefix) {
				return "", ErrOutsideRoot
			}
			break
		}
		if cur == d.root {
			break
		}
	}
	return abs, nil
}

// mkdirAllChecked creates directories but refuses if any component in the path is a file.
func (d *Dir) mkdirAllChecked(absDir string) error {
	absDir = filepath.Clean(absDir)
	if absDir != d.root && !strings.HasPrefix(absDir, d.root+string(filepath.Separator)) {
		return ErrOutsideRoot
	}

	rel, err := filepath.Rel(d.root, absDir)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	cur := d.root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		cur = filepath.Join(cur, part)

		st, err := os.Stat(cur)
		switch {
		case err == nil && !st.IsDir():
			return ErrConflict
		case err == nil:
			continue
		case errors.Is(err, os.ErrNotExist):
			if mkErr := os.Mkdir(cur, 0o755); mkErr != nil && !errors.Is(mkErr, os.ErrExist) {
				return mkErr
			}
		default:
			return err
		}
	}
	return nil
}
