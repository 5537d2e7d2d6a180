package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/testutil"
)

const project = "p1"

func newStore(t *testing.T, recs ...content.FileRecord) *content.Store {
	t.Helper()
	b := testutil.NewMemoryBackend()
	b.Seed(project, recs...)
	s := content.NewStore(b, project)
	require.NoError(t, s.Reload(context.Background()))
	return s
}

func newDir(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	return d
}

func TestDirRejectsEscapes(t *testing.T) {
	d := newDir(t)
	assert.ErrorIs(t, d.Write("/../evil.txt", []byte("x")), content.ErrValidation)
	assert.ErrorIs(t, d.Write("relative.txt", []byte("x")), content.ErrValidation)

	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(d.Root(), "link")))
	assert.ErrorIs(t, d.Write("/link/x.txt", []byte("x")), ErrOutsideRoot)
}

func TestDirWriteConflicts(t *testing.T) {
	d := newDir(t)
	require.NoError(t, d.Write("/a", []byte("file")))
	assert.ErrorIs(t, d.Write("/a/b.txt", []byte("x")), ErrConflict)

	require.NoError(t, d.Mkdir("/dir"))
	assert.ErrorIs(t, d.Write("/dir", []byte("x")), ErrConflict)
}

func TestExportThenScan(t *testing.T) {
	d := newDir(t)
	files := []content.FileRecord{
		{Path: "/public", IsFolder: true},
		{Path: "/src", IsFolder: true},
		{Path: "/src/App.tsx", Content: "app"},
		{Path: "/src/components/Button.tsx", Content: "button"},
	}
	n, err := Export(context.Background(), d, files)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	body, err := d.Read("/src/components/Button.tsx")
	require.NoError(t, err)
	assert.Equal(t, "button", string(body))

	// noise Scan must ignore
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), ".DS_Store"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "logo.bin"), []byte{0xff, 0xfe, 0x00}, 0o644))

	scanned, err := d.Scan()
	require.NoError(t, err)
	var paths []string
	for _, r := range scanned {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{
		"/public",
		"/src",
		"/src/App.tsx",
		"/src/components",
		"/src/components/Button.tsx",
	}, paths)
}

func TestImport(t *testing.T) {
	s := newStore(t,
		content.FileRecord{Path: "/keep.txt", Content: "same"},
		content.FileRecord{Path: "/edit.txt", Content: "old"},
		content.FileRecord{Path: "/gone/x.txt", Content: "x"},
	)
	scanned := []content.FileRecord{
		{Path: "/edit.txt", Content: "new"},
		{Path: "/keep.txt", Content: "same"},
		{Path: "/new", IsFolder: true},
		{Path: "/new/file.txt", Content: "hi"},
	}

	res, err := Import(context.Background(), s, scanned, false)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2, Updated: 1}, res)
	_, ok := s.Get("/gone/x.txt")
	assert.True(t, ok)

	res, err = Import(context.Background(), s, scanned, true)
	require.NoError(t, err)
	assert.Equal(t, Result{Deleted: 1}, res)
	_, ok = s.Get("/gone/x.txt")
	assert.False(t, ok)

	rec, _ := s.Get("/edit.txt")
	assert.Equal(t, "new", rec.Content)
}

func TestImportKindConflict(t *testing.T) {
	s := newStore(t, content.FileRecord{Path: "/a", IsFolder: true})
	_, err := Import(context.Background(), s, []content.FileRecord{{Path: "/a", Content: "file now"}}, false)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestWatcherImportsEdits(t *testing.T) {
	d := newDir(t)
	s := newStore(t, content.FileRecord{Path: "/a.txt", Content: "A"})
	_, err := Export(context.Background(), d, s.Files())
	require.NoError(t, err)

	changes := make(chan struct{}, 64)
	w, err := Watch(context.Background(), d, s, func() { changes <- struct{}{} })
	require.NoError(t, err)
	defer w.Close()

	waitContent := func(p, want string) {
		t.Helper()
		require.Eventually(t, func() bool {
			rec, ok := s.Get(p)
			return ok && rec.Content == want
		}, 3*time.Second, 10*time.Millisecond, "%s never became %q", p, want)
	}

	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "a.txt"), []byte("A edited"), 0o644))
	waitContent("/a.txt", "A edited")

	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "b.txt"), []byte("B"), 0o644))
	waitContent("/b.txt", "B")

	require.NoError(t, os.MkdirAll(filepath.Join(d.Root(), "src"), 0o755))
	require.Eventually(t, func() bool {
		rec, ok := s.Get("/src")
		return ok && rec.IsFolder
	}, 3*time.Second, 10*time.Millisecond)

	// new subdirectories are watched too
	require.NoError(t, os.WriteFile(filepath.Join(d.Root(), "src", "c.ts"), []byte("C"), 0o644))
	waitContent("/src/c.ts", "C")

	require.NoError(t, os.Remove(filepath.Join(d.Root(), "b.txt")))
	require.Eventually(t, func() bool {
		_, ok := s.Get("/b.txt")
		return !ok
	}, 3*time.Second, 10*time.Millisecond)

	assert.NotEmpty(t, changes)
}

func TestSyncRewritesAndRemoves(t *testing.T) {
	d := newDir(t)
	ctx := context.Background()
	_, err := Export(ctx, d, []content.FileRecord{
		{Path: "/src", IsFolder: true},
		{Path: "/src/App.tsx", Content: "app"},
		{Path: "/src/old.ts", Content: "old"},
		{Path: "/stale", IsFolder: true},
	})
	require.NoError(t, err)

	files := []content.FileRecord{
		{Path: "/src/App.tsx", Content: "app v2"},
		{Path: "/src/lib/util.ts", Content: "util"},
	}
	res, err := Sync(ctx, d, files)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1, Updated: 1, Deleted: 2}, res)

	scanned, err := d.Scan()
	require.NoError(t, err)
	var paths []string
	for _, r := range scanned {
		paths = append(paths, r.Path)
	}
	// /src and /src/lib stay as implicit folders
	assert.Equal(t, []string{"/src", "/src/App.tsx", "/src/lib", "/src/lib/util.ts"}, paths)

	again, err := Sync(ctx, d, files)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}
