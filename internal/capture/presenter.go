package capture

import "github.com/AlverezYari/passcam/internal/display"

// Presenters fans every call out to each presenter in order.
type Presenters []Presenter

func (ps Presenters) ShowStatus(st display.Status) {
	for _, p := range ps {
		p.ShowStatus(st)
	}
}

func (ps Presenters) ShowControls(c display.Controls) {
	for _, p := range ps {
		p.ShowControls(c)
	}
}

func (ps Presenters) ShowResult(m *display.Model) {
	for _, p := range ps {
		p.ShowResult(m)
	}
}
