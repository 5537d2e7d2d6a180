package content

import (
	"path"
	"strings"
)

// LanguageFor maps a file path to the editor's language hint.
func LanguageFor(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".tsx", ".jsx", ".ts":
		return "typescript"
	case ".js":
		return "javascript"
	case ".css":
		return "css"
	case ".html", ".htm":
		return "html"
	case ".json":
		return "json"
	case ".md":
		return "markdown"
	}
	return "plaintext"
}
