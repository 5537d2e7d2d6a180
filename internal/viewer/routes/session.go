package routes

import (
	"context"
	"net/http"

	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/editor"
)

type sessionReq struct {
	Session string `json:"session"`
}

// sessionState is what every session endpoint answers with.
type sessionState struct {
	Session string              `json:"session"`
	Project string              `json:"project"`
	View    editor.View         `json:"view"`
	Tree    []*content.TreeNode `json:"tree,omitempty"`
}

func stateOf(id string, s *editor.Session, withTree bool) sessionState {
	st := sessionState{
		Session: id,
		Project: s.Store().ProjectID(),
		View:    s.View(),
	}
	if withTree {
		st.Tree = s.Store().Tree()
	}
	return st
}

func registerSessionRoutes(mux *http.ServeMux, d Deps) {
	// lookup answers the error itself when the session is unknown
	lookup := func(w http.ResponseWriter, id string) (*editor.Session, bool) {
		if id == "" {
			writeError(w, &content.ValidationError{Field: "session", Reason: "required"})
			return nil, false
		}
		s, err := d.Sessions.Get(id)
		if err != nil {
			writeError(w, err)
			return nil, false
		}
		return s, true
	}

	handlePost(mux, "/api/session/open", func(w http.ResponseWriter, r *http.Request, req struct {
		Project string `json:"project"`
		Path    string `json:"path"` // optional initial selection
	}) {
		ctx := r.Context()
		if req.Project != "" {
			if _, err := d.DB.GetProject(ctx, req.Project); err != nil {
				writeError(w, err)
				return
			}
		}
		id, s, err := d.Sessions.Open(ctx, req.Project)
		if err != nil {
			writeError(w, err)
			return
		}
		if req.Path != "" {
			if err := s.Select(ctx, req.Path); err != nil {
				_ = d.Sessions.Close(id)
				writeError(w, err)
				return
			}
		}
		writeJSONStatus(w, http.StatusCreated, stateOf(id, s, true))
	})

	handleGet(mux, "/api/session/state", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("session")
		s, ok := lookup(w, id)
		if !ok {
			return
		}
		writeJSON(w, stateOf(id, s, true))
	})

	handlePost(mux, "/api/session/select", func(w http.ResponseWriter, r *http.Request, req struct {
		sessionReq
		Path string `json:"path"`
		// Discard answers the unsaved-changes prompt up front. Without it a
		// dirty buffer blocks the switch with 409.
		Discard bool `json:"discard"`
	}) {
		s, ok := lookup(w, req.Session)
		if !ok {
			return
		}
		confirm := func(context.Context, string) bool { return req.Discard }
		if err := s.SelectWith(r.Context(), req.Path, confirm); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, stateOf(req.Session, s, false))
	})

	handlePost(mux, "/api/session/edit", func(w http.ResponseWriter, r *http.Request, req struct {
		sessionReq
		Content string `json:"content"`
	}) {
		s, ok := lookup(w, req.Session)
		if !ok {
			return
		}
		if err := s.Edit(req.Content); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, stateOf(req.Session, s, false))
	})

	handlePost(mux, "/api/session/save", func(w http.ResponseWriter, r *http.Request, req sessionReq) {
		s, ok := lookup(w, req.Session)
		if !ok {
			return
		}
		if err := s.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		d.changed(r.Context(), s.Store())
		writeJSON(w, stateOf(req.Session, s, false))
	})

	handlePost(mux, "/api/session/autosave", func(w http.ResponseWriter, r *http.Request, req struct {
		sessionReq
		Enabled bool `json:"enabled"`
	}) {
		s, ok := lookup(w, req.Session)
		if !ok {
			return
		}
		s.SetAutosave(req.Enabled)
		writeJSON(w, stateOf(req.Session, s, false))
	})

	handlePost(mux, "/api/session/close", func(w http.ResponseWriter, r *http.Request, req sessionReq) {
		if err := d.Sessions.Close(req.Session); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "closed"})
	})
}
