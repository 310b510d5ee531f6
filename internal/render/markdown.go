// Package render turns submitted markdown into themed HTML and derives
// plain-text summaries. The store persists its output verbatim and
// never re-derives it.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown to HTML with a theme's inline styles.
type Renderer struct {
	md           goldmark.Markdown
	themes       *Catalog
	defaultTheme string
}

// NewRenderer builds a renderer over a theme catalog. An empty
// defaultTheme falls back to the catalog's built-in theme.
func NewRenderer(themes *Catalog, defaultTheme string) *Renderer {
	if themes == nil {
		themes = DefaultCatalog()
	}
	if defaultTheme == "" {
		defaultTheme = FallbackTheme
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			extension.Footnote,
			extension.DefinitionList,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(chromahtml.TabWidth(2)),
			),
		),
		goldmark.WithRendererOptions(
			// Raw HTML passes through and single newlines become
			// breaks, matching the ingestion contract.
			html.WithUnsafe(),
			html.WithHardWraps(),
		),
	)

	return &Renderer{md: md, themes: themes, defaultTheme: defaultTheme}
}

// Render converts markdown to HTML and applies the named theme's inline
// styles. An empty themeName uses the renderer's default.
func (r *Renderer) Render(markdown, themeName string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	if themeName == "" {
		themeName = r.defaultTheme
	}
	return r.themes.Apply(buf.String(), themeName), nil
}

// Themes exposes the renderer's catalog.
func (r *Renderer) Themes() *Catalog { return r.themes }

// Summarize derives a plain-text summary from rendered HTML.
func (r *Renderer) Summarize(html string, maxLength int) string {
	return Summarize(html, maxLength)
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Summarize derives a plain-text summary from HTML, truncated to
// maxLength runes with a trailing ellipsis.
func Summarize(html string, maxLength int) string {
	text := tagPattern.ReplaceAllString(html, "")
	cleaned := strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	runes := []rune(cleaned)
	if len(runes) <= maxLength {
		return cleaned
	}
	return string(runes[:maxLength]) + "..."
}
