package routes

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// contentTypeForPath picks the Content-Type a browser expects for a
// project document. Scripts and styles never fall through to sniffing.
func contentTypeForPath(rel string, data []byte) string {
	ext := strings.ToLower(path.Ext(rel))

	switch ext {
	case ".css":
		return "text/css; charset=utf-8"
	case ".js", ".mjs", ".jsx", ".ts", ".tsx":
		return "text/javascript; charset=utf-8"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	}

	if ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			return mt
		}
	}
	return http.DetectContentType(data)
}
