package routes

import (
	"context"
	"net/http"

	logging "github.com/ipfs/go-log/v2"

	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/editor"
	"github.com/petervdpas/cipherstudio/internal/preview"
	"github.com/petervdpas/cipherstudio/internal/storage"
)

var log = logging.Logger("routes")

type Logs interface {
	ServeLogsJSON(w http.ResponseWriter, r *http.Request)
	ServeLogsSSE(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	DB       *storage.DB
	Sessions *editor.Manager
	Hub      *preview.Hub
	Renderer *preview.Renderer
	Logs     Logs

	Owner string
	Label string
}

func Register(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"label":    d.Label,
			"owner":    d.Owner,
			"sessions": len(d.Sessions.IDs()),
		})
	})

	registerAPILogRoutes(mux, d)
	registerProjectRoutes(mux, d)
	registerFileRoutes(mux, d)
	registerSessionRoutes(mux, d)
	registerPreviewRoutes(mux, d)
}

// changed tells everything that mirrors projectID about a write that went
// through store: open sessions reconcile and the preview gets the new set.
func (d Deps) changed(ctx context.Context, store *content.Store) {
	pid := store.ProjectID()
	if d.Sessions != nil {
		if err := d.Sessions.RefreshProject(ctx, pid); err != nil {
			log.Warnf("[%s] refresh sessions: %v", pid, err)
		}
	}
	if d.Hub != nil && store.Loaded() {
		d.Hub.Publish(pid, store.Files())
	}
}
