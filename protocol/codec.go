package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/strideml/simlink/types"
)

var nullPayload = []byte("null")

// DecodeValues unpacks a dynamic payload into a mapping, reading every field
// the schema declares. An absent or null payload yields an empty mapping
// rather than an error, since a schema may describe a zero-argument episode.
// Fields the payload does not carry take their zero value.
func DecodeValues(payload json.RawMessage, schema types.Schema) (types.Values, error) {
	if len(payload) == 0 || bytes.Equal(payload, nullPayload) {
		return types.Values{}, nil
	}

	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode dynamic payload: %w", err)
	}

	values := make(types.Values, len(schema))
	for _, f := range schema {
		rv, ok := raw[f.Name]
		if !ok {
			values[f.Name] = zeroValue(f.Type)
			continue
		}
		v, err := decodeField(rv, f.Type)
		if err != nil {
			return nil, fmt.Errorf("decode field %q: %w", f.Name, err)
		}
		values[f.Name] = v
	}
	return values, nil
}

// EncodeValues packs a mapping into a payload shaped by the schema. Keys
// absent from the schema are ignored; schema fields absent from the mapping
// keep their zero value.
func EncodeValues(values types.Values, schema types.Schema) (json.RawMessage, error) {
	obj := make(map[string]any, len(schema))
	for _, f := range schema {
		obj[f.Name] = zeroValue(f.Type)
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		coerced, err := coerceField(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("encode field %q: %w", f.Name, err)
		}
		obj[f.Name] = coerced
	}
	return json.Marshal(obj)
}

func zeroValue(t types.FieldType) any {
	switch t {
	case types.FieldInt:
		return int64(0)
	case types.FieldBool:
		return false
	case types.FieldString:
		return ""
	}
	return float64(0)
}

func decodeField(raw json.RawMessage, t types.FieldType) (any, error) {
	switch t {
	case types.FieldFloat:
		var v float64
		err := json.Unmarshal(raw, &v)
		return v, err
	case types.FieldInt:
		var v int64
		err := json.Unmarshal(raw, &v)
		return v, err
	case types.FieldBool:
		var v bool
		err := json.Unmarshal(raw, &v)
		return v, err
	case types.FieldString:
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	}
	return nil, fmt.Errorf("unknown field type %d", int(t))
}

func coerceField(v any, t types.FieldType) (any, error) {
	switch t {
	case types.FieldFloat:
		switch val := v.(type) {
		case float64:
			return val, nil
		case float32:
			return float64(val), nil
		case int64:
			return float64(val), nil
		case int:
			return float64(val), nil
		}
	case types.FieldInt:
		switch val := v.(type) {
		case int64:
			return val, nil
		case int:
			return int64(val), nil
		case float64:
			return int64(val), nil
		case float32:
			return int64(val), nil
		}
	case types.FieldBool:
		if val, ok := v.(bool); ok {
			return val, nil
		}
	case types.FieldString:
		if val, ok := v.(string); ok {
			return val, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not fit declared type %s", v, v, t)
}
