package routes

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/sdk"
)

var bodyCloseRe = regexp.MustCompile(`(?i)</body\s*>`)

func registerPreviewRoutes(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/api/preview/ws", func(w http.ResponseWriter, r *http.Request) {
		pid, ok := requireParam(w, r, "project")
		if !ok || !primeHub(w, r, d, pid) {
			return
		}
		d.Hub.ServeWS(w, r, pid)
	})

	handleGet(mux, "/api/preview/events", func(w http.ResponseWriter, r *http.Request) {
		pid, ok := requireParam(w, r, "project")
		if !ok || !primeHub(w, r, d, pid) {
			return
		}
		d.Hub.ServeSSE(w, r, pid)
	})

	// GET /preview/<project>           rendered page
	// GET /preview/<project>/<path...> raw document
	handleGet(mux, "/preview/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/preview/")
		pid, rel, _ := strings.Cut(rest, "/")
		if pid == "" {
			http.NotFound(w, r)
			return
		}

		docs, err := previewDocs(r.Context(), d, pid)
		if err != nil {
			writeError(w, err)
			return
		}

		if rel == "" {
			page, err := d.Renderer.Render(docs)
			if err != nil {
				writeError(w, err)
				return
			}
			if r.URL.Query().Get("live") == "1" {
				page = withLiveReload(page, pid)
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(page)
			return
		}

		p, err := content.CleanPath("/" + rel)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, doc := range docs {
			if doc.Path == p {
				data := []byte(doc.Content)
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.Header().Set("Content-Type", contentTypeForPath(p, data))
				_, _ = w.Write(data)
				return
			}
		}
		writeError(w, fmt.Errorf("%s: %w", p, content.ErrNotFound))
	})
}

// previewDocs returns the documents the preview currently shows for
// projectID, loading them from the database when the hub has none yet.
func previewDocs(ctx context.Context, d Deps, projectID string) ([]content.FileRecord, error) {
	if snap, ok := d.Hub.Latest(projectID); ok {
		return snap.Files, nil
	}
	store, err := projectStore(ctx, d, projectID)
	if err != nil {
		return nil, err
	}
	d.Hub.Publish(projectID, store.Files())
	return content.Documents(store.Files()), nil
}

// withLiveReload adds the reload script before the last </body>, or at the end.
func withLiveReload(page []byte, projectID string) []byte {
	tag := []byte(sdk.Tag(projectID))
	all := bodyCloseRe.FindAllIndex(page, -1)
	if len(all) == 0 {
		return append(page, tag...)
	}
	i := all[len(all)-1][0]
	out := make([]byte, 0, len(page)+len(tag))
	out = append(out, page[:i]...)
	out = append(out, tag...)
	return append(out, page[i:]...)
}

// primeHub makes sure a stream starts with the project's current state.
func primeHub(w http.ResponseWriter, r *http.Request, d Deps, projectID string) bool {
	if _, err := previewDocs(r.Context(), d, projectID); err != nil {
		writeError(w, err)
		return false
	}
	return true
}
