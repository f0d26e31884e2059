package types

// FieldType enumerates the value types a schema field can declare.
type FieldType int

const (
	FieldFloat FieldType = iota
	FieldInt
	FieldBool
	FieldString
)

func (t FieldType) String() string {
	switch t {
	case FieldFloat:
		return "float"
	case FieldInt:
		return "int"
	case FieldBool:
		return "bool"
	case FieldString:
		return "string"
	}
	return "unknown"
}

// Field is one named, typed entry of a schema.
type Field struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema is the ordered field list describing a dynamically shaped payload.
// Schemas are delivered by the server during the handshake and held
// read-only for the lifetime of the session.
type Schema []Field

// Names returns the declared field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}
