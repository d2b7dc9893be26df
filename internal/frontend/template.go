package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/profile-plausibility/internal/analysis"
)

var (
	scriptTagRegex = regexp.MustCompile(`<script([^>]*)>`)
	styleTagRegex  = regexp.MustCompile(`<style([^>]*)>`)
)

// Feature is one entry of the landing page feature list
type Feature struct {
	Title       string
	Description string
}

var landingFeatures = []Feature{
	{"Follower Authenticity", "Evaluate profile completeness, account age, and connection patterns"},
	{"Engagement Analysis", "Analyze like-to-follow ratio and content interaction quality"},
	{"Network Quality", "Detect suspicious growth patterns and connection authenticity"},
	{"Visual Insights", "View detailed graphs and charts of follower analytics"},
}

// PageData is what the index template renders. A nil Report shows the form.
type PageData struct {
	Nonce      string
	ProfileURL string
	Error      string
	Report     *analysis.Report
	Features   []Feature
}

var templateFuncs = template.FuncMap{
	"marker": func(kind analysis.Kind) string {
		switch kind {
		case analysis.KindSuccess:
			return "✓"
		case analysis.KindWarning:
			return "!"
		default:
			return "i"
		}
	},
}

// LoadIndexTemplate loads index.html from fsys and wires nonce placeholders
// into its inline script and style blocks.
func LoadIndexTemplate(fsys fs.FS) (*template.Template, error) {
	indexFile, err := fsys.Open("index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to open index.html: %w", err)
	}
	defer indexFile.Close()

	htmlContent, err := io.ReadAll(indexFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read index.html: %w", err)
	}

	tmpl, err := template.New("index").Funcs(templateFuncs).Parse(processHTMLForNonce(string(htmlContent)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	return tmpl, nil
}

// processHTMLForNonce modifies HTML to include nonce template placeholders
func processHTMLForNonce(html string) string {
	html = scriptTagRegex.ReplaceAllString(html, `<script nonce="{{.Nonce}}"$1>`)
	html = styleTagRegex.ReplaceAllString(html, `<style nonce="{{.Nonce}}"$1>`)
	return html
}

// RenderIndex executes tmpl into a buffer first so a failing template never
// leaves a half-written page.
func RenderIndex(c *gin.Context, tmpl *template.Template, status int, data PageData) error {
	if data.Features == nil {
		data.Features = landingFeatures
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
	return nil
}
