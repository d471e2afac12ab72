// Package export renders a page into a self-contained HTML document and
// writes it to a sink.
//
// A live document loads its state from /initial-state and keeps it current
// over WebSocket. An exported document instead carries a frozen snapshot in
// window.frozenState and the custom kind script inline, so it renders
// without a server.
package export

import (
	"bytes"
	"fmt"
	"html/template"
)

// IndexName is the file name exported documents are written under.
const IndexName = "index.html"

// Document describes one HTML document.
type Document struct {
	// Title is the document title.
	Title string

	// ClientScript is the URL of the renderer bundle.
	ClientScript string

	// CustomURL is the URL of the custom kind script of a live page.
	CustomURL string

	// CustomScript is the custom kind script inlined into an exported page.
	CustomScript string

	// State is the encoded snapshot of an exported page. A nil State makes a
	// live document.
	State []byte
}

var documentTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- if .State}}
<script>window.frozenState = {{.State}};</script>
{{- end}}
<script src="{{.ClientScript}}"></script>
{{- if .CustomURL}}
<script src="{{.CustomURL}}"></script>
{{- end}}
{{- if .CustomScript}}
<script>{{.CustomScript}}</script>
{{- end}}
</head>
<body>
<div id="root"></div>
</body>
</html>
`))

type templateData struct {
	Title        string
	ClientScript string
	CustomURL    string
	CustomScript template.JS
	State        template.JS
}

// Render renders doc. State must be JSON; it is embedded verbatim.
func Render(doc Document) ([]byte, error) {
	data := templateData{
		Title:        doc.Title,
		ClientScript: doc.ClientScript,
		CustomURL:    doc.CustomURL,
		CustomScript: template.JS(doc.CustomScript),
		State:        template.JS(doc.State),
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("export: render: %w", err)
	}
	return buf.Bytes(), nil
}
