package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder appends binary-encoded values to an internal buffer.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded bytes written so far.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// Marshal encodes s against schema.
func Marshal(s Struct, schema *StructSchema) ([]byte, error) {
	e := NewEncoder()
	if err := e.WriteStruct(s, schema); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// WriteMessageBegin writes a strict envelope header.
func (e *Encoder) WriteMessageBegin(name string, typ MessageType, seqID int32) {
	e.writeI32(int32(uint32(version1) | uint32(typ)))
	e.writeBinary([]byte(name))
	e.writeI32(seqID)
}

// Write appends v encoded as t.
func (e *Encoder) Write(v any, t *Type) error {
	return e.write(v, t, "")
}

// WriteStruct appends s encoded against schema.
func (e *Encoder) WriteStruct(s Struct, schema *StructSchema) error {
	return e.writeStruct(s, schema, schema.Name)
}

func (e *Encoder) writeStruct(s Struct, schema *StructSchema, path string) error {
	for _, f := range schema.Fields {
		v, ok := s[f.ID]
		if !ok || v == nil {
			if !f.Optional {
				return encodeErrorf(fieldPath(path, f.Name), "required field is not set")
			}
			continue
		}
		e.buf.WriteByte(byte(f.Type.Kind.TType()))
		e.writeI16(f.ID)
		if err := e.write(v, f.Type, fieldPath(path, f.Name)); err != nil {
			return err
		}
	}
	e.buf.WriteByte(byte(STOP))
	return nil
}

func (e *Encoder) write(v any, t *Type, path string) error {
	switch t.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return mismatch(path, t, v)
		}
		if b {
			e.buf.WriteByte(1)
		} else {
			e.buf.WriteByte(0)
		}
	case KindByte:
		b, ok := v.(int8)
		if !ok {
			return mismatch(path, t, v)
		}
		e.buf.WriteByte(byte(b))
	case KindI16:
		n, ok := v.(int16)
		if !ok {
			return mismatch(path, t, v)
		}
		e.writeI16(n)
	case KindI32:
		n, ok := v.(int32)
		if !ok {
			return mismatch(path, t, v)
		}
		e.writeI32(n)
	case KindI64:
		n, ok := v.(int64)
		if !ok {
			return mismatch(path, t, v)
		}
		e.writeI64(n)
	case KindDouble:
		f, ok := v.(float64)
		if !ok {
			return mismatch(path, t, v)
		}
		e.writeI64(int64(math.Float64bits(f)))
	case KindString:
		s, ok := v.(string)
		if !ok {
			return mismatch(path, t, v)
		}
		e.writeBinary([]byte(s))
	case KindBinary:
		b, ok := v.([]byte)
		if !ok {
			return mismatch(path, t, v)
		}
		e.writeBinary(b)
	case KindStruct:
		s, ok := v.(Struct)
		if !ok {
			return mismatch(path, t, v)
		}
		return e.writeStruct(s, t.Struct, path)
	case KindList:
		l, ok := v.(List)
		if !ok {
			return mismatch(path, t, v)
		}
		return e.writeElems([]any(l), t.Elem, path)
	case KindSet:
		s, ok := v.(Set)
		if !ok {
			return mismatch(path, t, v)
		}
		return e.writeElems([]any(s), t.Elem, path)
	case KindMap:
		m, ok := v.(Map)
		if !ok {
			return mismatch(path, t, v)
		}
		e.buf.WriteByte(byte(t.Key.Kind.TType()))
		e.buf.WriteByte(byte(t.Elem.Kind.TType()))
		e.writeI32(int32(len(m)))
		for i, entry := range m {
			p := fmt.Sprintf("%s[%d]", path, i)
			if err := e.write(entry.Key, t.Key, p+".key"); err != nil {
				return err
			}
			if err := e.write(entry.Value, t.Elem, p+".value"); err != nil {
				return err
			}
		}
	default:
		return encodeErrorf(path, "unsupported kind %v", t.Kind)
	}
	return nil
}

func (e *Encoder) writeElems(elems []any, elem *Type, path string) error {
	e.buf.WriteByte(byte(elem.Kind.TType()))
	e.writeI32(int32(len(elems)))
	for i, v := range elems {
		if err := e.write(v, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeI16(n int16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(n))
	e.buf.Write(b[:])
}

func (e *Encoder) writeI32(n int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	e.buf.Write(b[:])
}

func (e *Encoder) writeI64(n int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	e.buf.Write(b[:])
}

func (e *Encoder) writeBinary(b []byte) {
	e.writeI32(int32(len(b)))
	e.buf.Write(b)
}

func mismatch(path string, t *Type, v any) error {
	return encodeErrorf(path, "expected %v, got %T", t.Kind, v)
}
