package types

import (
	"reflect"
	"testing"
)

func TestSchemaNamesPreserveOrder(t *testing.T) {
	s := Schema{
		{Name: "c", Type: FieldFloat},
		{Name: "a", Type: FieldInt},
		{Name: "b", Type: FieldBool},
	}
	if !reflect.DeepEqual(s.Names(), []string{"c", "a", "b"}) {
		t.Errorf("names reordered: %v", s.Names())
	}
}

func TestValuesCoercion(t *testing.T) {
	v := Values{
		"f64": float64(1.5),
		"f32": float32(2.5),
		"i64": int64(3),
		"i":   4,
		"b":   true,
		"s":   "name",
	}

	if v.Float("f64") != 1.5 || v.Float("f32") != 2.5 || v.Float("i64") != 3 || v.Float("i") != 4 {
		t.Errorf("float coercion failed: %v", v)
	}
	if v.Int("i64") != 3 || v.Int("i") != 4 || v.Int("f64") != 1 {
		t.Errorf("int coercion failed: %v", v)
	}
	if !v.Bool("b") || v.String("s") != "name" {
		t.Errorf("bool/string accessors failed: %v", v)
	}

	// absent or mistyped values read as zero values
	if v.Float("missing") != 0 || v.Int("s") != 0 || v.Bool("f64") || v.String("i") != "" {
		t.Errorf("zero-value fallback failed")
	}
}
