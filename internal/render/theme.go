package render

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Styles holds the inline CSS applied to each HTML element of a
// rendered post. Empty entries leave the element unstyled.
type Styles struct {
	Pre        string `yaml:"pre"`
	CodeInline string `yaml:"codeInline"`
	Table      string `yaml:"table"`
	Thead      string `yaml:"thead"`
	Th         string `yaml:"th"`
	Td         string `yaml:"td"`
	Tr         string `yaml:"tr"`
	Blockquote string `yaml:"blockquote"`
	H1         string `yaml:"h1"`
	H2         string `yaml:"h2"`
	H3         string `yaml:"h3"`
	H4         string `yaml:"h4"`
	H5         string `yaml:"h5"`
	H6         string `yaml:"h6"`
	P          string `yaml:"p"`
	Ul         string `yaml:"ul"`
	Ol         string `yaml:"ol"`
	Li         string `yaml:"li"`
	A          string `yaml:"a"`
	Hr         string `yaml:"hr"`
	Mark       string `yaml:"mark"`
	Ins        string `yaml:"ins"`
	Del        string `yaml:"del"`
	Img        string `yaml:"img"`
}

// Theme is a named style set for rendered content.
type Theme struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Styles      Styles `yaml:"styles"`
}

// Catalog is the set of themes available for rendering.
type Catalog struct {
	themes map[string]Theme
}

// FallbackTheme is the catalog key always present as a last resort.
const FallbackTheme = "github"

// LoadCatalog reads a theme catalog from a YAML file. A missing file is
// not an error: the built-in fallback theme is used.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultCatalog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read themes: %w", err)
	}

	var themes map[string]Theme
	if err := yaml.Unmarshal(data, &themes); err != nil {
		return nil, fmt.Errorf("parse themes: %w", err)
	}
	if len(themes) == 0 {
		return DefaultCatalog(), nil
	}
	if _, ok := themes[FallbackTheme]; !ok {
		themes[FallbackTheme] = defaultTheme()
	}
	return &Catalog{themes: themes}, nil
}

// DefaultCatalog returns a catalog holding only the built-in theme.
func DefaultCatalog() *Catalog {
	return &Catalog{themes: map[string]Theme{FallbackTheme: defaultTheme()}}
}

// Names lists the catalog's theme names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.themes))
	for name := range c.themes {
		names = append(names, name)
	}
	return names
}

// Get resolves a theme by name, falling back to the built-in theme.
func (c *Catalog) Get(name string) Theme {
	if t, ok := c.themes[name]; ok {
		return t
	}
	return c.themes[FallbackTheme]
}

// Apply injects the theme's inline styles into rendered HTML. Width
// clamps are added so the output survives restrictive feed readers.
func (c *Catalog) Apply(html, themeName string) string {
	st := c.Get(themeName).Styles

	return strings.NewReplacer(
		"<pre>", `<pre style="`+cleanStyle(st.Pre)+`;max-width:100%;overflow-x:auto">`,
		`<code class="language-`, `<code style="font-family:'SF Mono',Monaco,Consolas,'Courier New',monospace;font-size:14px;line-height:1.5" class="language-`,
		"<code>", `<code style="`+cleanStyle(st.CodeInline)+`">`,
		"<table>", `<table style="`+cleanStyle(st.Table)+`;width:100%;max-width:100%;table-layout:auto">`,
		"<thead>", `<thead style="`+cleanStyle(st.Thead)+`">`,
		"<th>", `<th style="`+cleanStyle(st.Th)+`">`,
		"<td>", `<td style="`+cleanStyle(st.Td)+`">`,
		"<tr>", `<tr style="`+cleanStyle(st.Tr)+`">`,
		"<blockquote>", `<blockquote style="`+cleanStyle(st.Blockquote)+`;max-width:100%">`,
		"<h1>", `<h1 style="`+cleanStyle(st.H1)+`;max-width:100%">`,
		"<h2>", `<h2 style="`+cleanStyle(st.H2)+`;max-width:100%">`,
		"<h3>", `<h3 style="`+cleanStyle(st.H3)+`;max-width:100%">`,
		"<h4>", `<h4 style="`+cleanStyle(st.H4)+`;max-width:100%">`,
		"<h5>", `<h5 style="`+cleanStyle(st.H5)+`;max-width:100%">`,
		"<h6>", `<h6 style="`+cleanStyle(st.H6)+`;max-width:100%">`,
		"<p>", `<p style="`+cleanStyle(st.P)+`;max-width:100%;word-wrap:break-word">`,
		"<ul>", `<ul style="`+cleanStyle(st.Ul)+`">`,
		"<ol>", `<ol style="`+cleanStyle(st.Ol)+`">`,
		"<li>", `<li style="`+cleanStyle(st.Li)+`">`,
		"<a ", `<a style="`+cleanStyle(st.A)+`" `,
		"<hr>", `<hr style="`+cleanStyle(st.Hr)+`;max-width:100%">`,
		"<mark>", `<mark style="`+cleanStyle(st.Mark)+`">`,
		"<ins>", `<ins style="`+cleanStyle(st.Ins)+`">`,
		"<del>", `<del style="`+cleanStyle(st.Del)+`">`,
		"<img ", `<img style="`+cleanStyle(st.Img)+`;max-width:100%;height:auto" `,
	).Replace(html)
}

var unsafeStyleProps = regexp.MustCompile(`(?i)(overflow:\s*hidden;?|position:\s*relative;?|(-webkit-)?animation:[^;]+;?|transition:[^;]+;?)`)

// cleanStyle strips properties that break layout inside feed readers.
func cleanStyle(style string) string {
	return unsafeStyleProps.ReplaceAllString(style, "")
}

func defaultTheme() Theme {
	return Theme{
		Name:        "GitHub",
		Description: "GitHub-flavored light theme",
		Styles: Styles{
			Pre:        "background:#f6f8fa;padding:16px;border-radius:6px;margin:16px 0",
			CodeInline: "background:#f6f8fa;padding:2px 6px;border-radius:3px;font-family:monospace;font-size:14px;color:#e83e8c",
			Table:      "border-collapse:collapse;margin:16px 0",
			Thead:      "background:#f6f8fa",
			Th:         "padding:12px;text-align:left;font-weight:600",
			Td:         "padding:12px",
			Blockquote: "border-left:4px solid #0969da;margin:16px 0;padding:8px 16px;color:#57606a",
			H1:         "font-size:32px;font-weight:700;margin:24px 0 16px;line-height:1.25;color:#1f2328",
			H2:         "font-size:24px;font-weight:600;margin:24px 0 16px;line-height:1.25;color:#1f2328",
			H3:         "font-size:20px;font-weight:600;margin:16px 0 12px;line-height:1.25;color:#1f2328",
			H4:         "font-size:16px;font-weight:600;margin:16px 0 12px;line-height:1.25;color:#1f2328",
			H5:         "font-size:14px;font-weight:600;margin:16px 0 12px;line-height:1.25;color:#1f2328",
			H6:         "font-size:13px;font-weight:600;margin:16px 0 12px;line-height:1.25;color:#57606a",
			P:          "margin:16px 0;line-height:1.6;color:#24292f",
			Ul:         "margin:16px 0;padding-left:32px",
			Ol:         "margin:16px 0;padding-left:32px",
			Li:         "margin:4px 0;line-height:1.6",
			A:          "color:#0969da;text-decoration:none",
			Hr:         "border:0;border-top:1px solid #d0d7de;margin:24px 0",
			Mark:       "background:#fff8c5;padding:2px 4px",
			Ins:        "text-decoration:underline;background:#d4f8d4",
			Del:        "text-decoration:line-through;color:#82071e;background:#ffebe9",
			Img:        "border-radius:6px;margin:16px 0",
		},
	}
}
