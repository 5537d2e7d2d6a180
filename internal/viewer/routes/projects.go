package routes

import (
	"net/http"

	"github.com/petervdpas/cipherstudio/internal/content"
)

func registerProjectRoutes(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/api/projects", func(w http.ResponseWriter, r *http.Request) {
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			owner = d.Owner
		}
		list, err := d.DB.ListProjects(r.Context(), owner)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, list)
	})

	handleGet(mux, "/api/projects/get", func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireParam(w, r, "id")
		if !ok {
			return
		}
		p, err := d.DB.GetProject(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
	})

	handlePost(mux, "/api/projects/create", func(w http.ResponseWriter, r *http.Request, req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Empty       bool   `json:"empty"` // skip the starter files
	}) {
		var seed []content.FileRecord
		if !req.Empty {
			seed = content.StarterFiles()
		}
		p, err := d.DB.CreateProject(r.Context(), d.Owner, req.Name, req.Description, seed)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, p)
	})

	handlePost(mux, "/api/projects/update", func(w http.ResponseWriter, r *http.Request, req struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}) {
		p, err := d.DB.UpdateProject(r.Context(), req.ID, req.Name, req.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, p)
	})

	handlePost(mux, "/api/projects/delete", func(w http.ResponseWriter, r *http.Request, req struct {
		ID string `json:"id"`
	}) {
		if err := d.DB.DeleteProject(r.Context(), req.ID); err != nil {
			writeError(w, err)
			return
		}
		closed := 0
		if d.Sessions != nil {
			closed = d.Sessions.CloseProject(req.ID)
		}
		if d.Hub != nil {
			d.Hub.Forget(req.ID)
		}
		log.Debugf("project %s gone, %d sessions closed", req.ID, closed)
		writeJSON(w, map[string]any{"status": "deleted", "sessions_closed": closed})
	})
}
