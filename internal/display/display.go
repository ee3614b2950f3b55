// Package display holds the presentation boundary: status, control state and
// the normalized result model handed to whatever renders the console.
//
// Every free-text value placed in a Model has already been passed through
// Escape; renderers are expected to insert it as rich text unchanged.
package display

import "strings"

// Variant is the coarse status of the capture device.
type Variant int

const (
	VariantIdle Variant = iota
	VariantRequesting
	VariantActive
	VariantError
)

func (v Variant) String() string {
	switch v {
	case VariantIdle:
		return "idle"
	case VariantRequesting:
		return "requesting"
	case VariantActive:
		return "active"
	case VariantError:
		return "error"
	default:
		return "unknown"
	}
}

// Style classes attached to a status line.
const (
	ClassNone    = ""
	ClassSuccess = "success"
	ClassError   = "error"
)

type Status struct {
	Variant Variant `json:"-"`
	Message string  `json:"message"`
	Class   string  `json:"class"`
}

// StyleClass mirrors the class list a web status element would carry.
func (s Status) StyleClass() string {
	if s.Class == ClassNone {
		return "webcam-status"
	}
	return "webcam-status " + s.Class
}

// Controls is the enable/disable state of the operator controls.
type Controls struct {
	CameraOn        bool   `json:"camera_on"`
	ToggleLabel     string `json:"toggle_label"`
	SnapshotEnabled bool   `json:"snapshot_enabled"`
	SnapshotLabel   string `json:"snapshot_label"`
	SwitchEnabled   bool   `json:"switch_enabled"`
}

// Model is the rendered outcome of one submission. Exactly one of Error and
// Success is set.
type Model struct {
	Error   *ErrorSummary   `json:"error,omitempty"`
	Success *SuccessSummary `json:"success,omitempty"`
}

// Valid reports whether exactly one branch is populated.
func (m Model) Valid() bool {
	return (m.Error == nil) != (m.Success == nil)
}

type ErrorSummary struct {
	Title    string   `json:"title"`
	Messages []string `json:"messages,omitempty"`
}

type SuccessSummary struct {
	// ModelConfidence is empty for responses that carry no overall score.
	ModelConfidence string    `json:"model_confidence,omitempty"`
	Fields          []Row     `json:"fields"`
	MRZ             *MRZBlock `json:"mrz,omitempty"`
	Checks          []Check   `json:"checks,omitempty"`
}

// Row is one labeled field. Confidence is empty when the source has no
// confidence for the field at all; a placeholder dash means it was missing.
type Row struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	Confidence string `json:"confidence,omitempty"`
	TextType   string `json:"text_type,omitempty"`
	Language   string `json:"language,omitempty"`
}

// Meta joins the row's metadata the way the result list shows it.
func (r Row) Meta() string {
	var parts []string
	if r.TextType != "" {
		parts = append(parts, LabelTextType+": "+r.TextType)
	}
	if r.Language != "" {
		parts = append(parts, LabelLanguage+": "+r.Language)
	}
	return strings.Join(parts, " · ")
}

type MRZBlock struct {
	Lines []string `json:"lines,omitempty"`
	Rows  []Row    `json:"rows"`
}

type Check struct {
	Class   string `json:"class,omitempty"`
	Message string `json:"message"`
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Escape neutralizes the markup characters & < > and ".
func Escape(s string) string {
	return escaper.Replace(s)
}
