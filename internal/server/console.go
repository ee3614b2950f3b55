package server

import (
	"html/template"
	"net/http"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/AlverezYari/passcam/internal/display"
)

// resultPolicy limits result fragments to the markup RenderResult emits.
var resultPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "section", "h3", "h4", "p", "ul", "li", "dl", "dt", "dd", "pre", "span", "small", "strong")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)).Globally()
	return p
}()

// RenderResult renders a display model as an HTML fragment. A nil model
// renders nothing.
func RenderResult(m *display.Model) template.HTML {
	if m == nil {
		return ""
	}
	var b strings.Builder
	switch {
	case m.Error != nil:
		b.WriteString(`<div class="result result-error"><h3>`)
		b.WriteString(m.Error.Title)
		b.WriteString(`</h3>`)
		if len(m.Error.Messages) > 0 {
			b.WriteString(`<ul>`)
			for _, msg := range m.Error.Messages {
				b.WriteString(`<li>` + msg + `</li>`)
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</div>`)
	case m.Success != nil:
		renderSuccess(&b, m.Success)
	}
	return template.HTML(resultPolicy.Sanitize(b.String()))
}

func renderSuccess(b *strings.Builder, s *display.SuccessSummary) {
	b.WriteString(`<div class="result result-success">`)
	if s.ModelConfidence != "" {
		b.WriteString(`<section class="confidence"><h4>` + display.SectionConfidence + `</h4>`)
		b.WriteString(`<p>` + display.LabelModelConfidence + `: <strong>` + s.ModelConfidence + `</strong></p></section>`)
	}

	b.WriteString(`<section class="fields"><h4>` + display.SectionFields + `</h4>`)
	renderRows(b, s.Fields)
	b.WriteString(`</section>`)

	if s.MRZ != nil {
		b.WriteString(`<section class="mrz"><h4>` + display.SectionMRZ + `</h4>`)
		if len(s.MRZ.Lines) > 0 {
			b.WriteString(`<pre class="mrz-lines">` + strings.Join(s.MRZ.Lines, "\n") + `</pre>`)
		}
		renderRows(b, s.MRZ.Rows)
		b.WriteString(`</section>`)
	}

	if len(s.Checks) > 0 {
		b.WriteString(`<section class="checks"><h4>` + display.SectionChecks + `</h4><ul>`)
		for _, c := range s.Checks {
			b.WriteString(`<li class="` + c.Class + `">` + c.Message + `</li>`)
		}
		b.WriteString(`</ul></section>`)
	}
	b.WriteString(`</div>`)
}

func renderRows(b *strings.Builder, rows []display.Row) {
	b.WriteString(`<dl>`)
	for _, r := range rows {
		b.WriteString(`<dt>` + r.Label + `</dt><dd><span class="value">` + r.Value + `</span>`)
		if r.Confidence != "" {
			b.WriteString(` <span class="confidence">` + r.Confidence + `</span>`)
		}
		if meta := r.Meta(); meta != "" {
			b.WriteString(` <small class="meta">` + meta + `</small>`)
		}
		b.WriteString(`</dd>`)
	}
	b.WriteString(`</dl>`)
}

type pageData struct {
	Status     statusView
	Controls   display.Controls
	ResultHTML template.HTML
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	view := s.state.event("state")
	data := pageData{
		Status:     view.Status,
		Controls:   view.Controls,
		ResultHTML: template.HTML(view.ResultHTML),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.AddLog("ERROR", "Error rendering console: "+err.Error())
	}
}
