// Package sdk serves the JavaScript helpers preview pages load from the
// studio, at /sdk/studio-*.js.
package sdk

import (
	"embed"
	"html"
	"io/fs"
	"net/http"
	"path"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

var log = logging.Logger("sdk")

// LiveScript is the file that reloads a preview page on every new snapshot.
const LiveScript = "studio-live.js"

//go:embed *.js
var rawFS embed.FS

var minified = load()

func load() map[string][]byte {
	m := minify.New()
	m.AddFunc("text/javascript", js.Minify)

	out := make(map[string][]byte)
	_ = fs.WalkDir(rawFS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.ToLower(path.Ext(p)) != ".js" {
			return nil
		}
		raw, err := rawFS.ReadFile(p)
		if err != nil {
			return nil
		}
		small, err := m.Bytes("text/javascript", raw)
		if err != nil {
			log.Warnf("minify warning: %s: %v (using original)", p, err)
			out[p] = raw
			return nil
		}
		out[p] = small
		return nil
	})
	return out
}

// Handler serves the SDK files. Mount it at /sdk/ with a StripPrefix.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if data, ok := minified[name]; ok {
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
			_, _ = w.Write(data)
			return
		}
		http.NotFound(w, r)
	})
}

// Tag returns the script element that enables live reload for projectID.
func Tag(projectID string) string {
	return `<script src="/sdk/` + LiveScript + `" data-project="` + html.EscapeString(projectID) + `"></script>`
}
