package recognition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema identifies which response contract a payload follows.
type Schema int

const (
	SchemaUnknown Schema = iota
	SchemaLegacy
	SchemaV2
)

func (s Schema) String() string {
	switch s {
	case SchemaLegacy:
		return "legacy"
	case SchemaV2:
		return "v2"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownSchema     = errors.New("recognition: response matches no known schema")
	ErrMalformedResponse = errors.New("recognition: malformed response")
)

// Response is a decoded payload. Exactly one of V2 and Legacy is set.
type Response struct {
	Schema Schema
	V2     *V2Response
	Legacy *LegacyResponse
}

// Failed reports whether the service itself reported an error.
func (r Response) Failed() bool {
	switch {
	case r.V2 != nil:
		return r.V2.Failed()
	case r.Legacy != nil:
		return r.Legacy.Failed()
	}
	return false
}

type V2Response struct {
	Status          string                `json:"status"`
	ModelConfidence any                   `json:"model_confidence"`
	Fields          map[string]FieldValue `json:"fields"`
	MRZ             *MRZ                  `json:"mrz"`
	Checks          []Check               `json:"checks"`
	Errors          []ServiceError        `json:"errors"`
}

// Failed is true for status "error" or any listed error, whatever else the
// payload carries.
func (r *V2Response) Failed() bool {
	return r.Status == "error" || len(r.Errors) > 0
}

type FieldValue struct {
	Value      any    `json:"value"`
	Confidence any    `json:"confidence"`
	TextType   string `json:"text_type"`
	Language   string `json:"language"`
}

type MRZ struct {
	Lines          *MRZLines   `json:"lines"`
	DocumentNumber *FieldValue `json:"document_number"`
	DateOfBirth    *FieldValue `json:"date_of_birth"`
	DateOfExpiry   *FieldValue `json:"date_of_expiry"`
}

type MRZLines struct {
	Value      []string `json:"value"`
	Confidence any      `json:"confidence"`
}

// Present reports whether the block has anything worth showing.
func (m *MRZ) Present() bool {
	if m == nil {
		return false
	}
	if m.Lines != nil && len(m.Lines.Value) > 0 {
		return true
	}
	return m.DocumentNumber != nil && stringify(m.DocumentNumber.Value) != ""
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ServiceError is an entry of the v2 errors list. The service sends
// objects, but a bare string is accepted as the message.
type ServiceError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func (e *ServiceError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Message = s
		return nil
	}
	type plain ServiceError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = ServiceError(p)
	return nil
}

type LegacyResponse struct {
	DocumentNumber any          `json:"document_number"`
	DateOfBirth    string       `json:"date_of_birth"`
	DateOfExpiry   string       `json:"date_of_expiry"`
	Error          *LegacyError `json:"error"`
	MRZ            *LegacyMRZ   `json:"mrz"`
	RequestID      string       `json:"request_id"`
}

// Failed is true when the payload carries a non-empty error.
func (r *LegacyResponse) Failed() bool {
	return r.Error != nil && r.Error.Text() != ""
}

// LegacyError is either a plain string or the backend's
// {"error_code", "message"} object.
type LegacyError struct {
	Code    string
	Message string
}

func (e *LegacyError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Message = s
		return nil
	}
	var obj struct {
		Code    string `json:"error_code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.Code, e.Message = obj.Code, obj.Message
	return nil
}

// Text is the message to show, falling back to the code.
func (e *LegacyError) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// LegacyMRZ is the nested form some deployments of the legacy endpoint use.
type LegacyMRZ struct {
	DocumentNumber any    `json:"document_number"`
	DateOfBirth    string `json:"date_of_birth"`
	DateOfExpiry   string `json:"date_of_expiry"`
}

const v2Schema = `{
	"type": "object",
	"anyOf": [{"required": ["status"]}, {"required": ["fields"]}],
	"$defs": {
		"field": {
			"type": ["object", "null"],
			"properties": {
				"text_type": {"type": ["string", "null"]},
				"language": {"type": ["string", "null"]}
			}
		}
	},
	"properties": {
		"status": {"type": ["string", "null"]},
		"fields": {
			"type": ["object", "null"],
			"additionalProperties": {"$ref": "#/$defs/field"}
		},
		"mrz": {
			"type": ["object", "null"],
			"properties": {
				"lines": {
					"type": ["object", "null"],
					"properties": {
						"value": {"type": ["array", "null"], "items": {"type": "string"}}
					}
				},
				"document_number": {"$ref": "#/$defs/field"},
				"date_of_birth": {"$ref": "#/$defs/field"},
				"date_of_expiry": {"$ref": "#/$defs/field"}
			}
		},
		"checks": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"properties": {
					"status": {"type": ["string", "null"]},
					"message": {"type": ["string", "null"]}
				}
			}
		},
		"errors": {
			"type": ["array", "null"],
			"items": {
				"oneOf": [
					{"type": "string"},
					{
						"type": "object",
						"properties": {
							"message": {"type": ["string", "null"]},
							"error_code": {"type": ["string", "null"]}
						}
					}
				]
			}
		}
	}
}`

const legacySchema = `{
	"type": "object",
	"properties": {
		"document_number": {"type": ["string", "number", "null"]},
		"date_of_birth": {"type": ["string", "null"]},
		"date_of_expiry": {"type": ["string", "null"]},
		"request_id": {"type": ["string", "null"]},
		"error": {
			"oneOf": [
				{"type": "string"},
				{"type": "null"},
				{
					"type": "object",
					"properties": {
						"message": {"type": ["string", "null"]},
						"error_code": {"type": ["string", "null"]}
					}
				}
			]
		},
		"mrz": {
			"type": ["object", "null"],
			"properties": {
				"document_number": {"type": ["string", "number", "null"]},
				"date_of_birth": {"type": ["string", "null"]},
				"date_of_expiry": {"type": ["string", "null"]}
			}
		}
	}
}`

var (
	v2Validator     = jsonschema.MustCompileString("passcam://recognition/v2.json", v2Schema)
	legacyValidator = jsonschema.MustCompileString("passcam://recognition/legacy.json", legacySchema)
)

var legacyKeys = []string{"document_number", "date_of_birth", "date_of_expiry", "error", "mrz"}

// Sniff picks the schema from which top-level keys are present: status or
// fields mean v2, bare document keys or error without fields mean legacy.
func Sniff(keys map[string]json.RawMessage) Schema {
	if _, ok := keys["status"]; ok {
		return SchemaV2
	}
	if _, ok := keys["fields"]; ok {
		return SchemaV2
	}
	for _, k := range legacyKeys {
		if _, ok := keys[k]; ok {
			return SchemaLegacy
		}
	}
	return SchemaUnknown
}

// Decode detects the schema of body, validates it against that branch and
// decodes it. Anything that does not fit is rejected rather than guessed at.
func Decode(body []byte) (Response, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil || keys == nil {
		return Response{}, fmt.Errorf("%w: top level is not an object", ErrMalformedResponse)
	}

	schema := Sniff(keys)
	var validator *jsonschema.Schema
	switch schema {
	case SchemaV2:
		validator = v2Validator
	case SchemaLegacy:
		validator = legacyValidator
	default:
		return Response{}, ErrUnknownSchema
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := validator.Validate(doc); err != nil {
		return Response{}, fmt.Errorf("%w: %s schema: %v", ErrMalformedResponse, schema, err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	resp := Response{Schema: schema}
	switch schema {
	case SchemaV2:
		var v2 V2Response
		if err := dec.Decode(&v2); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		resp.V2 = &v2
	case SchemaLegacy:
		var legacy LegacyResponse
		if err := dec.Decode(&legacy); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		resp.Legacy = &legacy
	}
	return resp, nil
}
