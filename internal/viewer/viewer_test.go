package viewer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petervdpas/cipherstudio/internal/editor"
	"github.com/petervdpas/cipherstudio/internal/preview"
	"github.com/petervdpas/cipherstudio/internal/storage"
)

func TestLogBufferSplitsLines(t *testing.T) {
	b := NewLogBuffer(3)

	_, _ = b.Write([]byte("one\ntw"))
	_, _ = b.Write([]byte("o\r\n\n  \nthree\nfour\n"))

	var msgs []string
	for _, e := range b.Snapshot() {
		msgs = append(msgs, e.Msg)
	}
	assert.Equal(t, []string{"two", "three", "four"}, msgs)
	assert.Len(t, b.Tail(1), 1)
	assert.Equal(t, "four", b.Tail(1)[0].Msg)
}

func TestLogBufferSubscribe(t *testing.T) {
	b := NewLogBuffer(10)
	ch, cancel := b.Subscribe()

	_, _ = b.Write([]byte("hello\n"))
	select {
	case e := <-ch:
		assert.Equal(t, "hello", e.Msg)
	case <-time.After(time.Second):
		t.Fatal("no entry delivered")
	}

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()
}

func TestServeLogsJSON(t *testing.T) {
	b := NewLogBuffer(10)
	_, _ = b.Write([]byte("a\nb\nc\n"))

	rec := httptest.NewRecorder()
	b.ServeLogsJSON(rec, httptest.NewRequest(http.MethodGet, "/api/logs?tail=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Msg)

	rec = httptest.NewRecorder()
	b.ServeLogsJSON(rec, httptest.NewRequest(http.MethodGet, "/api/logs?tail=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	b.ServeLogsJSON(rec, httptest.NewRequest(http.MethodPost, "/api/logs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func testViewer(t *testing.T) Viewer {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hub := preview.NewHub(0)
	return Viewer{
		DB:       db,
		Sessions: editor.NewManager(db, editor.Options{}, hub),
		Hub:      hub,
		Renderer: preview.NewRenderer(false),
		Logs:     NewLogBuffer(10),
		Owner:    "tester",
	}
}

func TestHandlerDisablesCaching(t *testing.T) {
	v := testViewer(t)
	_, _ = v.Logs.Write([]byte("started\n"))

	rec := httptest.NewRecorder()
	Handler(v).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Contains(t, rec.Body.String(), "started")

	rec = httptest.NewRecorder()
	Handler(v).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServeStopsOnCancel(t *testing.T) {
	v := testViewer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, v) }()

	url := "http://" + ln.Addr().String() + "/api/projects"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHandlerServesSDK(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(testViewer(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sdk/studio-live.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "EventSource")
}
