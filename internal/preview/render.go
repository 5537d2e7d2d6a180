package preview

import (
	"bytes"
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	mhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/petervdpas/cipherstudio/internal/content"
)

// EntryPaths are tried in order as the page a preview starts from.
var EntryPaths = []string{"/index.html", "/public/index.html", "/src/index.html"}

var (
	headCloseRe = regexp.MustCompile(`(?i)</head\s*>`)
	bodyCloseRe = regexp.MustCompile(`(?i)</body\s*>`)
	jsMediaRe   = regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`)
)

// Renderer turns a document set into one self-contained HTML page.
type Renderer struct {
	md  goldmark.Markdown
	min *minify.M
}

// NewRenderer creates a renderer; minifyOutput shrinks the produced page.
func NewRenderer(minifyOutput bool) *Renderer {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle("github")),
			),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
	if minifyOutput {
		m := minify.New()
		m.AddFunc("text/html", mhtml.Minify)
		m.AddFunc("text/css", css.Minify)
		m.AddFuncRegexp(jsMediaRe, js.Minify)
		r.min = m
	}
	return r
}

// Render builds the page for files. With an entry HTML document the page is
// that document with the project's CSS and plain JS inlined; otherwise every
// document is listed, Markdown rendered and source highlighted.
func (r *Renderer) Render(files []content.FileRecord) ([]byte, error) {
	docs := content.Documents(files)

	var out []byte
	if entry, ok := findEntry(docs); ok {
		out = []byte(inlineAssets(entry.Content, docs))
	} else {
		page, err := r.listing(docs)
		if err != nil {
			return nil, err
		}
		out = page
	}

	if r.min == nil {
		return out, nil
	}
	small, err := r.min.Bytes("text/html", out)
	if err != nil {
		log.Warnf("minify warning: %v (using original)", err)
		return out, nil
	}
	return small, nil
}

func findEntry(docs []content.FileRecord) (content.FileRecord, bool) {
	for _, want := range EntryPaths {
		for _, d := range docs {
			if d.Path == want {
				return d, true
			}
		}
	}
	return content.FileRecord{}, false
}

func inlineAssets(page string, docs []content.FileRecord) string {
	var styles, scripts strings.Builder
	for _, d := range docs {
		switch content.LanguageFor(d.Path) {
		case "css":
			fmt.Fprintf(&styles, "<style data-path=\"%s\">\n%s\n</style>\n", html.EscapeString(d.Path), d.Content)
		case "javascript":
			fmt.Fprintf(&scripts, "<script data-path=\"%s\">\n%s\n</script>\n", html.EscapeString(d.Path), d.Content)
		}
	}

	if styles.Len() > 0 {
		if loc := headCloseRe.FindStringIndex(page); loc != nil {
			page = page[:loc[0]] + styles.String() + page[loc[0]:]
		} else {
			page = styles.String() + page
		}
	}
	if scripts.Len() > 0 {
		if loc := bodyCloseRe.FindStringIndex(page); loc != nil {
			page = page[:loc[0]] + scripts.String() + page[loc[0]:]
		} else {
			page += scripts.String()
		}
	}
	return page
}

func (r *Renderer) listing(docs []content.FileRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Preview</title>\n")
	buf.WriteString("<style>body{font-family:sans-serif;margin:2rem}section{margin-bottom:2rem}h2{font-size:1rem;font-family:monospace}</style>\n")
	buf.WriteString("</head>\n<body>\n")
	if len(docs) == 0 {
		buf.WriteString("<p>This project has no files yet.</p>\n")
	}
	for _, d := range docs {
		fmt.Fprintf(&buf, "<section data-path=\"%s\">\n<h2>%s</h2>\n", html.EscapeString(d.Path), html.EscapeString(d.Path))
		src := d.Content
		if content.LanguageFor(d.Path) != "markdown" {
			src = fence(d.Path, d.Content)
		}
		if err := r.md.Convert([]byte(src), &buf); err != nil {
			return nil, fmt.Errorf("render %s: %w", d.Path, err)
		}
		buf.WriteString("</section>\n")
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes(), nil
}

// fence wraps body in a Markdown code fence longer than any backtick run inside it.
func fence(p, body string) string {
	longest, run := 0, 0
	for _, c := range body {
		if c == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	ticks := strings.Repeat("`", n)
	return ticks + fenceLang(p) + "\n" + body + "\n" + ticks + "\n"
}

func fenceLang(p string) string {
	switch ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), "."); ext {
	case "ts", "tsx", "jsx", "js", "css", "html", "json":
		return ext
	case "htm":
		return "html"
	}
	return ""
}
