// Package wire implements the binary encoding used by the note service RPC
// protocol. Schemas are plain data: callers describe structs as numbered
// fields with a declared kind, and the encoder/decoder walk values against
// that description.
package wire

import "fmt"

// TType is the one-byte type tag written on the wire.
type TType byte

const (
	STOP   TType = 0
	VOID   TType = 1
	BOOL   TType = 2
	BYTE   TType = 3
	DOUBLE TType = 4
	I16    TType = 6
	I32    TType = 8
	I64    TType = 10
	STRING TType = 11
	STRUCT TType = 12
	MAP    TType = 13
	SET    TType = 14
	LIST   TType = 15
)

func (t TType) String() string {
	switch t {
	case STOP:
		return "STOP"
	case VOID:
		return "VOID"
	case BOOL:
		return "BOOL"
	case BYTE:
		return "BYTE"
	case DOUBLE:
		return "DOUBLE"
	case I16:
		return "I16"
	case I32:
		return "I32"
	case I64:
		return "I64"
	case STRING:
		return "STRING"
	case STRUCT:
		return "STRUCT"
	case MAP:
		return "MAP"
	case SET:
		return "SET"
	case LIST:
		return "LIST"
	}
	return fmt.Sprintf("TType(%d)", byte(t))
}

// Kind is the schema-level type of a value. String and Binary share a wire
// tag; the schema decides whether a Go string or []byte is produced.
type Kind int

const (
	KindBool Kind = iota + 1
	KindByte
	KindI16
	KindI32
	KindI64
	KindDouble
	KindString
	KindBinary
	KindStruct
	KindList
	KindSet
	KindMap
)

// TType returns the wire tag for k.
func (k Kind) TType() TType {
	switch k {
	case KindBool:
		return BOOL
	case KindByte:
		return BYTE
	case KindI16:
		return I16
	case KindI32:
		return I32
	case KindI64:
		return I64
	case KindDouble:
		return DOUBLE
	case KindString, KindBinary:
		return STRING
	case KindStruct:
		return STRUCT
	case KindList:
		return LIST
	case KindSet:
		return SET
	case KindMap:
		return MAP
	}
	return STOP
}

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindByte:
		return "byte"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindStruct:
		return "struct"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type describes a value. Elem is used by list, set and map (value side),
// Key by map, Struct by struct.
type Type struct {
	Kind   Kind
	Elem   *Type
	Key    *Type
	Struct *StructSchema
}

var (
	Bool   = &Type{Kind: KindBool}
	Byte   = &Type{Kind: KindByte}
	Int16  = &Type{Kind: KindI16}
	Int32  = &Type{Kind: KindI32}
	Int64  = &Type{Kind: KindI64}
	Double = &Type{Kind: KindDouble}
	String = &Type{Kind: KindString}
	Binary = &Type{Kind: KindBinary}
)

// ListOf returns a list type with the given element type.
func ListOf(elem *Type) *Type { return &Type{Kind: KindList, Elem: elem} }

// SetOf returns a set type with the given element type.
func SetOf(elem *Type) *Type { return &Type{Kind: KindSet, Elem: elem} }

// MapOf returns a map type.
func MapOf(key, value *Type) *Type { return &Type{Kind: KindMap, Key: key, Elem: value} }

// StructOf returns a struct type for schema s.
func StructOf(s *StructSchema) *Type { return &Type{Kind: KindStruct, Struct: s} }

// Field is one numbered member of a struct schema.
type Field struct {
	ID       int16
	Name     string
	Type     *Type
	Optional bool
}

// StructSchema is an ordered set of fields. Encoding follows the declared order.
type StructSchema struct {
	Name   string
	Fields []Field
}

// Field looks up a field by id.
func (s *StructSchema) Field(id int16) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].ID == id {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Struct holds decoded or to-be-encoded field values keyed by field id.
// Absent keys are unset optional fields.
type Struct map[int16]any

// List is the Go value of a list.
type List []any

// Set is the Go value of a set. Element order is preserved as written.
type Set []any

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   any
	Value any
}

// Map keeps entries in insertion order so encoding is deterministic.
type Map []MapEntry

// Has reports whether field id is set.
func (s Struct) Has(id int16) bool {
	_, ok := s[id]
	return ok
}

// Str returns field id as a string, or "" when unset.
func (s Struct) Str(id int16) string {
	v, _ := s[id].(string)
	return v
}

// Bin returns field id as bytes, or nil when unset.
func (s Struct) Bin(id int16) []byte {
	v, _ := s[id].([]byte)
	return v
}

func (s Struct) Bool(id int16) bool {
	v, _ := s[id].(bool)
	return v
}

func (s Struct) I16(id int16) int16 {
	v, _ := s[id].(int16)
	return v
}

func (s Struct) I32(id int16) int32 {
	v, _ := s[id].(int32)
	return v
}

func (s Struct) I64(id int16) int64 {
	v, _ := s[id].(int64)
	return v
}

func (s Struct) Float(id int16) float64 {
	v, _ := s[id].(float64)
	return v
}

// Sub returns a nested struct field, or nil when unset.
func (s Struct) Sub(id int16) Struct {
	v, _ := s[id].(Struct)
	return v
}

// ListAt returns a list field, or nil when unset.
func (s Struct) ListAt(id int16) List {
	v, _ := s[id].(List)
	return v
}

// SetIf stores v under id unless v is the zero value of its type. It keeps
// converters for optional fields short.
func (s Struct) SetIf(id int16, v any) {
	switch x := v.(type) {
	case string:
		if x == "" {
			return
		}
	case []byte:
		if x == nil {
			return
		}
	case int32:
		if x == 0 {
			return
		}
	case int64:
		if x == 0 {
			return
		}
	case bool:
		if !x {
			return
		}
	case Struct:
		if x == nil {
			return
		}
	case List:
		if x == nil {
			return
		}
	case nil:
		return
	}
	s[id] = v
}

// MessageType is the kind of an RPC envelope.
type MessageType int32

const (
	MessageCall      MessageType = 1
	MessageReply     MessageType = 2
	MessageException MessageType = 3
	MessageOneway    MessageType = 4
)

const (
	versionMask = 0xffff0000
	version1    = 0x80010000
	maxDepth    = 64
)
