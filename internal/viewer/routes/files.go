package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/petervdpas/cipherstudio/internal/content"
	"github.com/petervdpas/cipherstudio/internal/editor"
)

// fileTarget names where a file operation runs: through an open session,
// which keeps its selection in step, or through a one-off store.
type fileTarget struct {
	Project string `json:"project"`
	Session string `json:"session"`
}

func (t fileTarget) resolve(ctx context.Context, d Deps) (*content.Store, *editor.Session, error) {
	if t.Session != "" {
		sess, err := d.Sessions.Get(t.Session)
		if err != nil {
			return nil, nil, err
		}
		if t.Project != "" && t.Project != sess.Store().ProjectID() {
			return nil, nil, &content.ValidationError{Field: "project", Value: t.Project, Reason: "does not match session"}
		}
		return sess.Store(), sess, nil
	}
	store, err := projectStore(ctx, d, t.Project)
	return store, nil, err
}

// projectStore loads a fresh store for an existing project.
func projectStore(ctx context.Context, d Deps, projectID string) (*content.Store, error) {
	if projectID == "" {
		return nil, &content.ValidationError{Field: "project", Reason: "required"}
	}
	if _, err := d.DB.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	store := content.NewStore(d.DB, projectID)
	if err := store.Reload(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func registerFileRoutes(mux *http.ServeMux, d Deps) {
	handleGet(mux, "/api/files", func(w http.ResponseWriter, r *http.Request) {
		pid, ok := requireParam(w, r, "project")
		if !ok {
			return
		}
		store, err := projectStore(r.Context(), d, pid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, store.Files())
	})

	handleGet(mux, "/api/files/read", func(w http.ResponseWriter, r *http.Request) {
		pid, ok := requireParam(w, r, "project")
		if !ok {
			return
		}
		p, ok := requireParam(w, r, "path")
		if !ok {
			return
		}
		store, err := projectStore(r.Context(), d, pid)
		if err != nil {
			writeError(w, err)
			return
		}
		clean, err := content.CleanPath(p)
		if err != nil {
			writeError(w, err)
			return
		}
		rec, found := store.Get(clean)
		if !found {
			writeError(w, fmt.Errorf("%s: %w", clean, content.ErrNotFound))
			return
		}
		writeJSON(w, map[string]any{
			"file":     rec,
			"language": content.LanguageFor(rec.Path),
		})
	})

	handleGet(mux, "/api/tree", func(w http.ResponseWriter, r *http.Request) {
		pid, ok := requireParam(w, r, "project")
		if !ok {
			return
		}
		store, err := projectStore(r.Context(), d, pid)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"project": pid,
			"tree":    store.Tree(),
		})
	})

	handlePost(mux, "/api/files/create", func(w http.ResponseWriter, r *http.Request, req struct {
		fileTarget
		Path     string `json:"path"`
		Dir      string `json:"dir"`  // with name, when path is empty
		Name     string `json:"name"`
		Content  string `json:"content"` // ignored when created through a session
		IsFolder bool   `json:"is_folder"`
	}) {
		ctx := r.Context()
		p := req.Path
		if p == "" {
			var err error
			if p, err = content.ChildPath(req.Dir, req.Name); err != nil {
				writeError(w, err)
				return
			}
		}
		store, sess, err := req.resolve(ctx, d)
		if err != nil {
			writeError(w, err)
			return
		}
		if sess != nil {
			err = sess.CreateFile(ctx, p, req.IsFolder)
		} else {
			err = store.Create(ctx, p, req.Content, req.IsFolder)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		d.changed(ctx, store)

		clean, _ := content.CleanPath(p)
		resp := map[string]any{"path": clean}
		if sess != nil {
			resp["view"] = sess.View()
		}
		writeJSONStatus(w, http.StatusCreated, resp)
	})

	handlePost(mux, "/api/files/update", func(w http.ResponseWriter, r *http.Request, req struct {
		Project string `json:"project"`
		Path    string `json:"path"`
		Content string `json:"content"`
	}) {
		ctx := r.Context()
		store, err := projectStore(ctx, d, req.Project)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := store.Update(ctx, req.Path, req.Content); err != nil {
			writeError(w, err)
			return
		}
		d.changed(ctx, store)
		writeJSON(w, map[string]string{"status": "saved"})
	})

	handlePost(mux, "/api/files/rename", func(w http.ResponseWriter, r *http.Request, req struct {
		fileTarget
		OldPath string `json:"old_path"`
		NewPath string `json:"new_path"`
		NewName string `json:"new_name"` // sibling rename, when new_path is empty
	}) {
		ctx := r.Context()
		newPath := req.NewPath
		if newPath == "" {
			var err error
			if newPath, err = content.RenameLeaf(req.OldPath, req.NewName); err != nil {
				writeError(w, err)
				return
			}
		}
		store, sess, err := req.resolve(ctx, d)
		if err != nil {
			writeError(w, err)
			return
		}
		if sess != nil {
			err = sess.Rename(ctx, req.OldPath, newPath)
		} else {
			err = store.Rename(ctx, req.OldPath, newPath)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		d.changed(ctx, store)

		clean, _ := content.CleanPath(newPath)
		resp := map[string]any{"path": clean}
		if sess != nil {
			resp["view"] = sess.View()
		}
		writeJSON(w, resp)
	})

	handlePost(mux, "/api/files/delete", func(w http.ResponseWriter, r *http.Request, req struct {
		fileTarget
		Path string `json:"path"`
	}) {
		ctx := r.Context()
		store, sess, err := req.resolve(ctx, d)
		if err != nil {
			writeError(w, err)
			return
		}
		if sess != nil {
			err = sess.Delete(ctx, req.Path)
		} else {
			err = store.Delete(ctx, req.Path)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		d.changed(ctx, store)

		resp := map[string]any{"status": "deleted"}
		if sess != nil {
			resp["view"] = sess.View()
		}
		writeJSON(w, resp)
	})
}
