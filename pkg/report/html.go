package report

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

var sanitizer = bluemonday.UGCPolicy()

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%TITLE%</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #d1d5db; padding: 0.3rem 0.6rem; text-align: left; }
th { background: #f3f4f6; }
code { background: #f3f4f6; padding: 0 0.2rem; }
</style>
</head>
<body>
`

const htmlTail = "</body>\n</html>\n"

// RenderHTML renders the report as a standalone HTML page. The converted
// body is sanitized, so markup in backend-supplied text never survives.
func RenderHTML(r Report) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(r.Markdown()), &body); err != nil {
		return "", verrors.Wrap(err, verrors.ErrCodeInternal, "render report")
	}

	title := r.Title
	if strings.TrimSpace(title) == "" {
		title = "Security report"
	}

	var out strings.Builder
	out.WriteString(strings.Replace(htmlHead, "%TITLE%", html.EscapeString(title), 1))
	out.Write(sanitizer.SanitizeBytes(body.Bytes()))
	out.WriteString(htmlTail)
	return out.String(), nil
}
