package scraper

import (
	"html/template"
	"io"
)

var reportTemplate = template.Must(template.New("report").Parse(`<html><head><title>IAMC Report</title></head><body>
{{- range .}}
<h1>{{.Title}}</h1>
<table border="1">
<tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</table>
{{- end}}
</body></html>
`))

// RenderHTML writes tables as an HTML page with one table per section.
func RenderHTML(w io.Writer, tables []Table) error {
	return reportTemplate.Execute(w, tables)
}
