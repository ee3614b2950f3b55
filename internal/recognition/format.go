package recognition

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AlverezYari/passcam/internal/display"
)

type fieldLabel struct {
	key   string
	label string
}

// passportFields lists the v2 fields in display order.
var passportFields = []fieldLabel{
	{"document_number", display.LabelDocumentNumber},
	{"document_series", "Серия документа"},
	{"last_name", "Фамилия"},
	{"first_name", "Имя"},
	{"middle_name", "Отчество"},
	{"date_of_birth", display.LabelDateOfBirth},
	{"place_of_birth", "Место рождения"},
	{"gender", "Пол"},
	{"nationality", "Гражданство"},
	{"date_of_issue", "Дата выдачи"},
	{"date_of_expiry", display.LabelDateOfExpiry},
	{"issuing_authority", "Орган выдачи"},
	{"issuing_country", "Страна выдачи"},
	{"personal_number", "Личный номер"},
}

// FormatBody decodes body and formats it. Payloads that cannot be decoded
// produce an error summary instead of a partial result.
func FormatBody(body []byte) display.Model {
	resp, err := Decode(body)
	if err != nil {
		return errorModel(display.ResultMalformed)
	}
	return Format(resp)
}

// Format turns a decoded response into a display model.
func Format(r Response) display.Model {
	switch {
	case r.V2 != nil:
		return formatV2(r.V2)
	case r.Legacy != nil:
		return formatLegacy(r.Legacy)
	}
	return errorModel(display.ResultMalformed)
}

func errorModel(messages ...string) display.Model {
	escaped := make([]string, len(messages))
	for i, m := range messages {
		escaped[i] = display.Escape(m)
	}
	return display.Model{Error: &display.ErrorSummary{
		Title:    display.StatusRecognizeError,
		Messages: escaped,
	}}
}

func formatV2(r *V2Response) display.Model {
	if r.Failed() {
		messages := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			messages[i] = e.Message
		}
		return errorModel(messages...)
	}

	success := &display.SuccessSummary{
		ModelConfidence: FormatConfidence(r.ModelConfidence),
		Fields:          make([]display.Row, 0, len(passportFields)),
	}
	for _, f := range passportFields {
		entry := r.Fields[f.key]
		row := valueRow(f.key, f.label, entry.Value, entry.Confidence)
		row.TextType = textType(entry.TextType)
		row.Language = display.Escape(entry.Language)
		success.Fields = append(success.Fields, row)
	}

	if r.MRZ.Present() {
		block := &display.MRZBlock{}
		if r.MRZ.Lines != nil {
			for _, line := range r.MRZ.Lines.Value {
				block.Lines = append(block.Lines, display.Escape(line))
			}
		}
		block.Rows = []display.Row{
			mrzRow("document_number", display.LabelDocumentNumber, r.MRZ.DocumentNumber),
			mrzRow("date_of_birth", display.LabelDateOfBirth, r.MRZ.DateOfBirth),
			mrzRow("date_of_expiry", display.LabelDateOfExpiry, r.MRZ.DateOfExpiry),
		}
		success.MRZ = block
	}

	for _, c := range r.Checks {
		check := display.Check{Message: display.Escape(c.Message)}
		if c.Status != "" {
			check.Class = "check-" + display.Escape(c.Status)
		}
		success.Checks = append(success.Checks, check)
	}

	return display.Model{Success: success}
}

func mrzRow(key, label string, v *FieldValue) display.Row {
	if v == nil {
		return valueRow(key, label, nil, nil)
	}
	return valueRow(key, label, v.Value, v.Confidence)
}

func valueRow(key, label string, value, confidence any) display.Row {
	s := stringify(value)
	if s == "" {
		s = display.Placeholder
	}
	return display.Row{
		Key:        key,
		Label:      display.Escape(label),
		Value:      display.Escape(s),
		Confidence: FormatConfidence(confidence),
	}
}

func textType(v string) string {
	switch v {
	case "printed":
		return display.TextTypePrinted
	case "handwritten":
		return display.TextTypeHandwritten
	default:
		return display.TextTypeUnknown
	}
}

func formatLegacy(r *LegacyResponse) display.Model {
	if r.Failed() {
		return errorModel(r.Error.Text())
	}

	number, birth, expiry := r.DocumentNumber, r.DateOfBirth, r.DateOfExpiry
	if r.MRZ != nil {
		if stringify(number) == "" {
			number = r.MRZ.DocumentNumber
		}
		if birth == "" {
			birth = r.MRZ.DateOfBirth
		}
		if expiry == "" {
			expiry = r.MRZ.DateOfExpiry
		}
	}

	rows := []display.Row{
		legacyRow("document_number", display.LabelDocumentNumber, stringify(number)),
		legacyRow("date_of_birth", display.LabelDateOfBirth, FormatCompactDate(birth)),
		legacyRow("date_of_expiry", display.LabelDateOfExpiry, FormatCompactDate(expiry)),
	}
	return display.Model{Success: &display.SuccessSummary{Fields: rows}}
}

func legacyRow(key, label, value string) display.Row {
	if value == "" {
		value = display.Placeholder
	}
	return display.Row{Key: key, Label: display.Escape(label), Value: display.Escape(value)}
}

// FormatConfidence renders a 0..1 confidence as a rounded percentage, or a
// dash when the value is missing, non-numeric or not finite.
func FormatConfidence(v any) string {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return display.Placeholder
	}
	return fmt.Sprintf("%d%%", int64(math.Floor(f*100+0.5)))
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// FormatCompactDate turns YYMMDD into DD.MM.YYYY. Two-digit years above 50
// belong to the 1900s, the rest to the 2000s. ISO dates are reordered the
// same way; anything else is returned unchanged.
func FormatCompactDate(s string) string {
	if len(s) == 6 && allDigits(s) {
		yy, _ := strconv.Atoi(s[0:2])
		century := 2000
		if yy > 50 {
			century = 1900
		}
		return fmt.Sprintf("%s.%s.%d", s[4:6], s[2:4], century+yy)
	}
	if len(s) == 10 && s[4] == '-' && s[7] == '-' && allDigits(s[0:4]+s[5:7]+s[8:10]) {
		return s[8:10] + "." + s[5:7] + "." + s[0:4]
	}
	return s
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// stringify renders a JSON scalar the way it should read on screen.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
