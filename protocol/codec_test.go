package protocol

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/strideml/simlink/types"
)

var testSchema = types.Schema{
	{Name: "angle", Type: types.FieldFloat},
	{Name: "steps", Type: types.FieldInt},
	{Name: "done", Type: types.FieldBool},
	{Name: "label", Type: types.FieldString},
}

func TestDecodeAbsentPayload(t *testing.T) {
	for _, payload := range []json.RawMessage{nil, []byte("null")} {
		values, err := DecodeValues(payload, testSchema)
		if err != nil {
			t.Fatalf("decoding absent payload returned error: %v", err)
		}
		if len(values) != 0 {
			t.Errorf("expected empty mapping for absent payload, got %v", values)
		}
	}
}

func TestDecodeReadsEverySchemaField(t *testing.T) {
	payload := json.RawMessage(`{"angle": 1.5, "steps": 7, "done": true, "label": "up"}`)
	values, err := DecodeValues(payload, testSchema)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}

	expected := types.Values{
		"angle": 1.5,
		"steps": int64(7),
		"done":  true,
		"label": "up",
	}
	if !reflect.DeepEqual(values, expected) {
		t.Errorf("decoded %v, expected %v", values, expected)
	}
}

func TestDecodeMissingFieldsTakeZeroValue(t *testing.T) {
	payload := json.RawMessage(`{"angle": 2.0}`)
	values, err := DecodeValues(payload, testSchema)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if values.Int("steps") != 0 || values.Bool("done") || values.String("label") != "" {
		t.Errorf("missing fields did not take zero values: %v", values)
	}
}

func TestEncodeIgnoresKeysOutsideSchema(t *testing.T) {
	payload, err := EncodeValues(types.Values{
		"angle":    1.0,
		"imposter": "dropped",
	}, testSchema)
	if err != nil {
		t.Fatalf("encode returned error: %v", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		t.Fatalf("payload is not an object: %v", err)
	}
	if _, ok := obj["imposter"]; ok {
		t.Errorf("key outside the schema made it into the payload: %s", payload)
	}
	if len(obj) != len(testSchema) {
		t.Errorf("payload has %d fields, schema declares %d", len(obj), len(testSchema))
	}
}

func TestRoundTrip(t *testing.T) {
	original := types.Values{
		"angle": -3.25,
		"steps": int64(42),
		"done":  true,
		"label": "terminal",
	}

	payload, err := EncodeValues(original, testSchema)
	if err != nil {
		t.Fatalf("encode returned error: %v", err)
	}
	decoded, err := DecodeValues(payload, testSchema)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	reencoded, err := EncodeValues(decoded, testSchema)
	if err != nil {
		t.Fatalf("re-encode returned error: %v", err)
	}
	redecoded, err := DecodeValues(reencoded, testSchema)
	if err != nil {
		t.Fatalf("re-decode returned error: %v", err)
	}

	if !reflect.DeepEqual(decoded, original) {
		t.Errorf("decoded %v, expected %v", decoded, original)
	}
	if !reflect.DeepEqual(redecoded, decoded) {
		t.Errorf("round trip changed values: %v vs %v", redecoded, decoded)
	}
}

func TestEncodeCoercesNumericKinds(t *testing.T) {
	payload, err := EncodeValues(types.Values{
		"angle": float32(1.5),
		"steps": 7, // plain int
	}, testSchema)
	if err != nil {
		t.Fatalf("encode returned error: %v", err)
	}
	values, err := DecodeValues(payload, testSchema)
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	if values.Float("angle") != 1.5 {
		t.Errorf("expected angle 1.5, got %v", values["angle"])
	}
	if values.Int("steps") != 7 {
		t.Errorf("expected steps 7, got %v", values["steps"])
	}
}

func TestEncodeRejectsMistypedValue(t *testing.T) {
	_, err := EncodeValues(types.Values{"angle": "not a number"}, testSchema)
	if err == nil {
		t.Errorf("expected an error for a mistyped value")
	}
}
