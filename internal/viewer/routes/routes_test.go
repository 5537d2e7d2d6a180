package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/editor"
	"github.com/petervdpas/cipherstudio/internal/preview"
	"github.com/petervdpas/cipherstudio/internal/storage"
)

type harness struct {
	t   *testing.T
	mux *http.ServeMux
	d   Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hub := preview.NewHub(0)
	sessions := editor.NewManager(db, editor.Options{}, hub)
	t.Cleanup(sessions.CloseAll)

	d := Deps{
		DB:       db,
		Sessions: sessions,
		Hub:      hub,
		Renderer: preview.NewRenderer(false),
		Owner:    "tester",
	}
	mux := http.NewServeMux()
	Register(mux, d)
	return &harness{t: t, mux: mux, d: d}
}

func (h *harness) do(method, target string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

// post sends body and decodes a JSON answer into out when out is non-nil.
func (h *harness) post(target string, body, out any) int {
	h.t.Helper()
	rec := h.do(http.MethodPost, target, body)
	if out != nil && rec.Code < 300 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (h *harness) get(target string, out any) int {
	h.t.Helper()
	rec := h.do(http.MethodGet, target, nil)
	if out != nil && rec.Code < 300 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (h *harness) project(name string, empty bool) storage.Project {
	h.t.Helper()
	var p storage.Project
	code := h.post("/api/projects/create", map[string]any{"name": name, "empty": empty}, &p)
	require.Equal(h.t, http.StatusCreated, code)
	require.NotEmpty(h.t, p.ID)
	return p
}

func (h *harness) treePaths(projectID string) []string {
	h.t.Helper()
	var resp struct {
		Tree []*content.TreeNode `json:"tree"`
	}
	require.Equal(h.t, http.StatusOK, h.get("/api/tree?project="+projectID, &resp))
	return content.FilePaths(resp.Tree)
}

func TestProjectLifecycle(t *testing.T) {
	h := newHarness(t)
	p := h.project("  Demo  ", false)
	assert.Equal(t, "Demo", p.Name)
	assert.Equal(t, "tester", p.Owner)

	var list []storage.Project
	require.Equal(t, http.StatusOK, h.get("/api/projects", &list))
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	assert.Equal(t, []string{"/src/App.css", "/src/App.tsx", "/src/index.tsx"}, h.treePaths(p.ID))

	var updated storage.Project
	require.Equal(t, http.StatusOK, h.post("/api/projects/update",
		map[string]string{"id": p.ID, "name": "Renamed", "description": "d"}, &updated))
	assert.Equal(t, "Renamed", updated.Name)

	assert.Equal(t, http.StatusBadRequest, h.post("/api/projects/update",
		map[string]string{"id": p.ID, "name": " "}, nil))

	require.Equal(t, http.StatusOK, h.post("/api/projects/delete", map[string]string{"id": p.ID}, nil))
	assert.Equal(t, http.StatusNotFound, h.get("/api/projects/get?id="+p.ID, nil))
	assert.Equal(t, http.StatusNotFound, h.get("/api/files?project="+p.ID, nil))
}

func TestCreateEmptyProject(t *testing.T) {
	h := newHarness(t)
	p := h.project("Blank", true)

	var files []content.FileRecord
	require.Equal(t, http.StatusOK, h.get("/api/files?project="+p.ID, &files))
	assert.Empty(t, files)
	assert.Equal(t, http.StatusBadRequest, h.post("/api/projects/create", map[string]string{"name": ""}, nil))
}

func TestFileRoutes(t *testing.T) {
	h := newHarness(t)
	p := h.project("Files", false)

	require.Equal(t, http.StatusCreated, h.post("/api/files/create",
		map[string]any{"project": p.ID, "path": "/src/util.ts", "content": "export {}"}, nil))
	assert.Contains(t, h.treePaths(p.ID), "/src/util.ts")

	var read struct {
		File     content.FileRecord `json:"file"`
		Language string             `json:"language"`
	}
	require.Equal(t, http.StatusOK, h.get("/api/files/read?project="+p.ID+"&path=/src/util.ts", &read))
	assert.Equal(t, "export {}", read.File.Content)
	assert.Equal(t, "typescript", read.Language)

	t.Run("duplicate", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, h.post("/api/files/create",
			map[string]any{"project": p.ID, "path": "/src/util.ts"}, nil))
	})

	t.Run("dir and name", func(t *testing.T) {
		var resp struct {
			Path string `json:"path"`
		}
		require.Equal(t, http.StatusCreated, h.post("/api/files/create",
			map[string]any{"project": p.ID, "dir": "/public", "name": "index.html"}, &resp))
		assert.Equal(t, "/public/index.html", resp.Path)

		assert.Equal(t, http.StatusBadRequest, h.post("/api/files/create",
			map[string]any{"project": p.ID, "dir": "/public", "name": "a/b"}, nil))
	})

	t.Run("bad path", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, h.post("/api/files/create",
			map[string]any{"project": p.ID, "path": "/src/../x"}, nil))
	})

	t.Run("update", func(t *testing.T) {
		require.Equal(t, http.StatusOK, h.post("/api/files/update",
			map[string]any{"project": p.ID, "path": "/src/util.ts", "content": "v2"}, nil))
		assert.Equal(t, http.StatusNotFound, h.post("/api/files/update",
			map[string]any{"project": p.ID, "path": "/nope.ts", "content": "x"}, nil))
	})

	t.Run("rename onto existing", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, h.post("/api/files/rename",
			map[string]any{"project": p.ID, "old_path": "/src/util.ts", "new_path": "/src/App.tsx"}, nil))
		assert.Contains(t, h.treePaths(p.ID), "/src/util.ts")
	})

	t.Run("rename leaf", func(t *testing.T) {
		var resp struct {
			Path string `json:"path"`
		}
		require.Equal(t, http.StatusOK, h.post("/api/files/rename",
			map[string]any{"project": p.ID, "old_path": "/src/util.ts", "new_name": "helpers.ts"}, &resp))
		assert.Equal(t, "/src/helpers.ts", resp.Path)
		assert.Contains(t, h.treePaths(p.ID), "/src/helpers.ts")
	})

	t.Run("delete folder cascades", func(t *testing.T) {
		require.Equal(t, http.StatusOK, h.post("/api/files/delete",
			map[string]any{"project": p.ID, "path": "/src"}, nil))
		assert.Equal(t, []string{"/public/index.html"}, h.treePaths(p.ID))
		assert.Equal(t, http.StatusNotFound, h.post("/api/files/delete",
			map[string]any{"project": p.ID, "path": "/src"}, nil))
	})
}

func TestSessionFlow(t *testing.T) {
	h := newHarness(t)
	p := h.project("Edit", false)

	var st sessionState
	require.Equal(t, http.StatusCreated, h.post("/api/session/open", map[string]any{"project": p.ID}, &st))
	require.NotEmpty(t, st.Session)
	assert.Equal(t, "empty", st.View.State)
	assert.Len(t, content.FilePaths(st.Tree), 3)
	sid := st.Session

	assert.Equal(t, http.StatusBadRequest, h.post("/api/session/edit",
		map[string]any{"session": sid, "content": "x"}, nil))

	require.Equal(t, http.StatusOK, h.post("/api/session/select",
		map[string]any{"session": sid, "path": "/src/App.css"}, &st))
	assert.Equal(t, "clean", st.View.State)
	assert.Equal(t, "css", st.View.Language)

	require.Equal(t, http.StatusOK, h.post("/api/session/edit",
		map[string]any{"session": sid, "content": "body{}"}, &st))
	assert.True(t, st.View.Dirty)

	// a dirty buffer blocks a switch unless the discard is confirmed
	assert.Equal(t, http.StatusConflict, h.post("/api/session/select",
		map[string]any{"session": sid, "path": "/src/App.tsx"}, nil))
	require.Equal(t, http.StatusOK, h.get("/api/session/state?session="+sid, &st))
	assert.Equal(t, "/src/App.css", st.View.Path)
	assert.Equal(t, "body{}", st.View.Buffer)

	require.Equal(t, http.StatusOK, h.post("/api/session/save", map[string]any{"session": sid}, &st))
	assert.False(t, st.View.Dirty)

	var read struct {
		File content.FileRecord `json:"file"`
	}
	require.Equal(t, http.StatusOK, h.get("/api/files/read?project="+p.ID+"&path=/src/App.css", &read))
	assert.Equal(t, "body{}", read.File.Content)

	require.Equal(t, http.StatusOK, h.post("/api/session/edit",
		map[string]any{"session": sid, "content": "changed"}, nil))
	require.Equal(t, http.StatusOK, h.post("/api/session/select",
		map[string]any{"session": sid, "path": "/src/App.tsx", "discard": true}, &st))
	assert.Equal(t, "/src/App.tsx", st.View.Path)
	assert.False(t, st.View.Dirty)

	require.Equal(t, http.StatusOK, h.post("/api/session/autosave",
		map[string]any{"session": sid, "enabled": true}, &st))
	assert.True(t, st.View.Autosave)

	require.Equal(t, http.StatusOK, h.post("/api/session/close", map[string]any{"session": sid}, nil))
	assert.Equal(t, http.StatusNotFound, h.get("/api/session/state?session="+sid, nil))
	assert.Equal(t, http.StatusNotFound, h.post("/api/session/close", map[string]any{"session": sid}, nil))
}

func TestSessionOpenErrors(t *testing.T) {
	h := newHarness(t)
	p := h.project("Open", false)

	assert.Equal(t, http.StatusBadRequest, h.post("/api/session/open", map[string]any{}, nil))
	assert.Equal(t, http.StatusNotFound, h.post("/api/session/open", map[string]any{"project": "missing"}, nil))
	assert.Equal(t, http.StatusNotFound, h.post("/api/session/open",
		map[string]any{"project": p.ID, "path": "/nope.ts"}, nil))
	assert.Empty(t, h.d.Sessions.IDs())

	assert.Equal(t, http.StatusBadRequest, h.get("/api/session/state", nil))
	assert.Equal(t, http.StatusBadRequest, h.post("/api/session/select",
		map[string]any{"path": "/src/App.tsx"}, nil))
}

func TestFileOpsThroughSession(t *testing.T) {
	h := newHarness(t)
	p := h.project("Follow", false)

	var st sessionState
	require.Equal(t, http.StatusCreated, h.post("/api/session/open",
		map[string]any{"project": p.ID, "path": "/src/App.tsx"}, &st))
	sid := st.Session

	require.Equal(t, http.StatusOK, h.post("/api/session/edit",
		map[string]any{"session": sid, "content": "draft"}, nil))

	var resp struct {
		Path string      `json:"path"`
		View editor.View `json:"view"`
	}
	require.Equal(t, http.StatusOK, h.post("/api/files/rename",
		map[string]any{"session": sid, "old_path": "/src", "new_path": "/app"}, &resp))
	assert.Equal(t, "/app/App.tsx", resp.View.Path)
	assert.Equal(t, "draft", resp.View.Buffer)
	assert.True(t, resp.View.Dirty)

	// the record is created but selecting it would drop the draft
	assert.Equal(t, http.StatusConflict, h.post("/api/files/create",
		map[string]any{"session": sid, "path": "/app/new.ts"}, nil))
	var sel sessionState
	require.Equal(t, http.StatusOK, h.get("/api/session/state?session="+sid, &sel))
	assert.Contains(t, content.FilePaths(sel.Tree), "/app/new.ts")
	assert.Equal(t, "/app/App.tsx", sel.View.Path)
	assert.Equal(t, "draft", sel.View.Buffer)

	assert.Equal(t, http.StatusBadRequest, h.post("/api/files/delete",
		map[string]any{"session": sid, "project": "other", "path": "/app"}, nil))
	require.Equal(t, http.StatusOK, h.post("/api/files/delete",
		map[string]any{"session": sid, "path": "/app"}, &resp))
	assert.Equal(t, "empty", resp.View.State)
}

func TestOutsideWriteReachesOpenSession(t *testing.T) {
	h := newHarness(t)
	p := h.project("Sync", false)

	var st sessionState
	require.Equal(t, http.StatusCreated, h.post("/api/session/open",
		map[string]any{"project": p.ID, "path": "/src/App.css"}, &st))

	require.Equal(t, http.StatusOK, h.post("/api/files/update",
		map[string]any{"project": p.ID, "path": "/src/App.css", "content": "from elsewhere"}, nil))

	require.Equal(t, http.StatusOK, h.get("/api/session/state?session="+st.Session, &st))
	assert.Equal(t, "from elsewhere", st.View.Buffer)
	assert.False(t, st.View.Dirty)
}

func TestPreviewRoutes(t *testing.T) {
	h := newHarness(t)
	p := h.project("Site", true)

	for path, body := range map[string]string{
		"/index.html": "<html><head></head><body><p>hi</p></body></html>",
		"/style.css":  "p { color: red; }",
	} {
		require.Equal(t, http.StatusCreated, h.post("/api/files/create",
			map[string]any{"project": p.ID, "path": path, "content": body}, nil))
	}

	rec := h.do(http.MethodGet, "/preview/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "color: red")
	assert.Contains(t, rec.Body.String(), "<p>hi</p>")

	rec = h.do(http.MethodGet, "/preview/"+p.ID+"/style.css", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "p { color: red; }", rec.Body.String())

	require.Equal(t, http.StatusOK, h.post("/api/files/update",
		map[string]any{"project": p.ID, "path": "/style.css", "content": "p { color: blue; }"}, nil))
	rec = h.do(http.MethodGet, "/preview/"+p.ID, nil)
	assert.Contains(t, rec.Body.String(), "color: blue")

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/preview/"+p.ID+"/missing.js", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/preview/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/preview/", nil).Code)
}

func TestRequestShape(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodGet, "/api/projects/create", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodPost, "/api/projects", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.get("/api/files", nil))

	req := httptest.NewRequest(http.MethodPost, "/api/projects/create", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{content.ErrNotFound, http.StatusNotFound},
		{content.ErrDuplicatePath, http.StatusConflict},
		{&content.ValidationError{Field: "path"}, http.StatusBadRequest},
		{editor.ErrDiscardDeclined, http.StatusConflict},
		{editor.ErrClosed, http.StatusGone},
		{&content.TransportError{Op: "list", Err: errors.New("down")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.d.Label = "Studio"
	mux := http.NewServeMux()
	Register(mux, h.d)
	h.mux = mux

	p := h.project("S", true)
	require.Equal(t, http.StatusCreated, h.post("/api/session/open", map[string]any{"project": p.ID}, nil))

	var st struct {
		Label    string `json:"label"`
		Owner    string `json:"owner"`
		Sessions int    `json:"sessions"`
	}
	require.Equal(t, http.StatusOK, h.get("/api/status", &st))
	assert.Equal(t, "Studio", st.Label)
	assert.Equal(t, "tester", st.Owner)
	assert.Equal(t, 1, st.Sessions)
}

func TestWithLiveReload(t *testing.T) {
	got := string(withLiveReload([]byte("<html><BODY>x</BODY></html>"), "p1"))
	assert.Equal(t, `<html><BODY>x<script src="/sdk/studio-live.js" data-project="p1"></script></BODY></html>`, got)

	got = string(withLiveReload([]byte("plain"), "p1"))
	assert.True(t, strings.HasPrefix(got, "plain<script"))
}
