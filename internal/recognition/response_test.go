package recognition

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		body string
		want Schema
	}{
		{`{"status":"ok"}`, SchemaV2},
		{`{"fields":{}}`, SchemaV2},
		{`{"fields":{},"document_number":"A"}`, SchemaV2},
		{`{"status":"error","error":"x"}`, SchemaV2},
		{`{"document_number":"A"}`, SchemaLegacy},
		{`{"date_of_expiry":"300101"}`, SchemaLegacy},
		{`{"error":"boom"}`, SchemaLegacy},
		{`{"mrz":{}}`, SchemaLegacy},
		{`{"request_id":"r"}`, SchemaUnknown},
		{`{}`, SchemaUnknown},
	}
	for _, tt := range tests {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal([]byte(tt.body), &keys); err != nil {
			t.Fatal(err)
		}
		if got := Sniff(keys); got != tt.want {
			t.Errorf("Sniff(%s) = %s, want %s", tt.body, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	t.Run("v2", func(t *testing.T) {
		resp, err := Decode([]byte(`{"status":"ok","model_confidence":0.5,"fields":{"gender":{"value":"M"}}}`))
		if err != nil {
			t.Fatal(err)
		}
		if resp.Schema != SchemaV2 || resp.V2 == nil || resp.Legacy != nil {
			t.Fatalf("resp = %+v", resp)
		}
		if _, ok := resp.V2.ModelConfidence.(json.Number); !ok {
			t.Errorf("model_confidence decoded as %T, want json.Number", resp.V2.ModelConfidence)
		}
		if resp.Failed() {
			t.Error("ok response reported as failed")
		}
	})
	t.Run("legacy", func(t *testing.T) {
		resp, err := Decode([]byte(`{"document_number":"A","request_id":"r-1"}`))
		if err != nil {
			t.Fatal(err)
		}
		if resp.Schema != SchemaLegacy || resp.Legacy == nil || resp.Legacy.RequestID != "r-1" {
			t.Fatalf("resp = %+v", resp)
		}
	})
	t.Run("service error object", func(t *testing.T) {
		resp, err := Decode([]byte(`{"errors":[{"error_code":"E","message":"m"}],"fields":{}}`))
		if err != nil {
			t.Fatal(err)
		}
		if !resp.Failed() || resp.V2.Errors[0].Code != "E" || resp.V2.Errors[0].Message != "m" {
			t.Errorf("errors = %+v", resp.V2.Errors)
		}
	})
	t.Run("unknown schema", func(t *testing.T) {
		if _, err := Decode([]byte(`{"hello":"world"}`)); !errors.Is(err, ErrUnknownSchema) {
			t.Errorf("err = %v, want ErrUnknownSchema", err)
		}
	})
	t.Run("not an object", func(t *testing.T) {
		for _, body := range []string{`[1,2]`, `null`, `not json`} {
			if _, err := Decode([]byte(body)); !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("Decode(%s) err = %v, want ErrMalformedResponse", body, err)
			}
		}
	})
	t.Run("schema violation", func(t *testing.T) {
		if _, err := Decode([]byte(`{"status":42}`)); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("err = %v, want ErrMalformedResponse", err)
		}
	})
}
