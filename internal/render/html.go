package render

import (
	"html/template"
	"io"
	"time"

	"weekcal/internal/model"
	"weekcal/internal/schedule"
)

// Page is everything the HTML view needs for one request.
type Page struct {
	Result   schedule.Result
	Catalog  model.SourceCatalog
	State    model.FilterState
	Counts   map[string]int
	Week     string
	LoadedAt time.Time
}

type pageData struct {
	Title        string
	Chart        template.HTML
	Sources      []SourceEntry
	ShowLectures bool
	Week         string
	WeekStart    string
	WeekEnd      string
	LoadedAt     string
	Empty        bool
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; background: #f4f4f4; color: #222; }
main { display: flex; gap: 16px; padding: 16px; align-items: flex-start; }
.chart { background: #fff; border: 1px solid #ddd; }
.chart svg { display: block; max-width: 100%; height: auto; }
.chart .bar:hover { stroke: #000; stroke-width: 2; fill-opacity: 1; }
form { background: #fff; border: 1px solid #ddd; padding: 12px; min-width: 200px; }
fieldset { border: 0; padding: 0; margin: 0 0 12px; }
legend { font-weight: bold; margin-bottom: 6px; }
label { display: block; margin: 4px 0; }
.swatch { display: inline-block; width: 12px; height: 12px; margin-right: 4px; vertical-align: middle; }
.meta { color: #777; font-size: 12px; }
</style>
</head>
<body>
<main data-ready="true">
<div class="chart">{{.Chart}}</div>
<form method="get" action="">
<input type="hidden" name="form" value="1">
<fieldset>
<legend>Calendars</legend>
{{- range .Sources}}
<label><input type="checkbox" name="source" value="{{.ID}}"{{if .Included}} checked{{end}}><span class="swatch" style="background: {{.Hex}}"></span>{{.Label}} <span class="meta">({{.Events}})</span></label>
{{- end}}
</fieldset>
<fieldset>
<input type="hidden" name="lectures" value="0">
<label><input type="checkbox" name="lectures" value="1"{{if .ShowLectures}} checked{{end}}>Show lectures</label>
</fieldset>
<fieldset>
<label>Week of <input type="date" name="week" value="{{.Week}}"></label>
</fieldset>
<button type="submit">Update chart</button>
{{- if .WeekStart}}
<p class="meta">{{.WeekStart}} to {{.WeekEnd}}</p>
{{- end}}
{{- if .LoadedAt}}
<p class="meta">Loaded {{.LoadedAt}}</p>
{{- end}}
</form>
</main>
</body>
</html>
`))

// HTML writes the interactive page: the SVG chart plus the source and
// lecture controls, which submit back as query parameters.
func HTML(w io.Writer, page Page, opts Options) error {
	o := opts.normalized()
	doc := NewDocument(page.Result, Catalog(page.Catalog, page.State, page.Counts, o.Palette))

	data := pageData{
		Title:        o.Title,
		Chart:        template.HTML(SVG(page.Result, page.Catalog, o)), //nolint:gosec // built with escapeXML
		Sources:      doc.Catalog,
		ShowLectures: page.State.ShowLectures,
		Week:         page.Week,
		WeekStart:    doc.WeekStart,
		WeekEnd:      doc.WeekEnd,
		Empty:        doc.Empty,
	}
	if !page.LoadedAt.IsZero() {
		data.LoadedAt = page.LoadedAt.Format("2006-01-02 15:04")
	}
	return pageTmpl.Execute(w, data)
}
