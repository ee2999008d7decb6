package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decoder reads binary-encoded values from a byte slice.
type Decoder struct {
	data  []byte
	pos   int
	depth int
}

// NewDecoder returns a Decoder over b. The slice is not copied; decoded
// binary values are.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{data: b}
}

// Unmarshal decodes a struct encoded against schema.
func Unmarshal(b []byte, schema *StructSchema) (Struct, error) {
	return NewDecoder(b).ReadStruct(schema)
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.pos
}

// ReadMessageBegin reads a strict envelope header. Non-strict or unknown
// versions are rejected.
func (d *Decoder) ReadMessageBegin() (name string, typ MessageType, seqID int32, err error) {
	header, err := d.readI32("message")
	if err != nil {
		return "", 0, 0, err
	}
	if uint32(header)&versionMask != version1 {
		return "", 0, 0, decodeErrorf("message", "bad protocol version 0x%08x", uint32(header))
	}
	typ = MessageType(uint32(header) & 0xff)
	raw, err := d.readBinary("message.name")
	if err != nil {
		return "", 0, 0, err
	}
	seqID, err = d.readI32("message.seqid")
	if err != nil {
		return "", 0, 0, err
	}
	return string(raw), typ, seqID, nil
}

// Read decodes a value of type t.
func (d *Decoder) Read(t *Type) (any, error) {
	return d.read(t, "")
}

// ReadStruct decodes a struct against schema. Unknown field ids are skipped;
// a known id carrying a different tag is an error.
func (d *Decoder) ReadStruct(schema *StructSchema) (Struct, error) {
	return d.readStruct(schema, schema.Name)
}

func (d *Decoder) readStruct(schema *StructSchema, path string) (Struct, error) {
	if err := d.enter(path); err != nil {
		return nil, err
	}
	defer d.leave()

	s := Struct{}
	for {
		tag, err := d.readByte(path)
		if err != nil {
			return nil, err
		}
		tt := TType(tag)
		if tt == STOP {
			break
		}
		id, err := d.readI16(path)
		if err != nil {
			return nil, err
		}
		f, ok := schema.Field(id)
		if !ok {
			if err := d.skip(tt, fmt.Sprintf("%s#%d", path, id)); err != nil {
				return nil, err
			}
			continue
		}
		p := fieldPath(path, f.Name)
		if want := f.Type.Kind.TType(); want != tt {
			return nil, decodeErrorf(p, "expected tag %v, found %v", want, tt)
		}
		v, err := d.read(f.Type, p)
		if err != nil {
			return nil, err
		}
		s[id] = v
	}
	for _, f := range schema.Fields {
		if !f.Optional && !s.Has(f.ID) {
			return nil, decodeErrorf(fieldPath(path, f.Name), "required field is missing")
		}
	}
	return s, nil
}

func (d *Decoder) read(t *Type, path string) (any, error) {
	switch t.Kind {
	case KindBool:
		b, err := d.readByte(path)
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case KindByte:
		b, err := d.readByte(path)
		if err != nil {
			return nil, err
		}
		return int8(b), nil
	case KindI16:
		return d.readI16(path)
	case KindI32:
		return d.readI32(path)
	case KindI64:
		return d.readI64(path)
	case KindDouble:
		n, err := d.readI64(path)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(uint64(n)), nil
	case KindString:
		b, err := d.readBinary(path)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case KindBinary:
		b, err := d.readBinary(path)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case KindStruct:
		return d.readStruct(t.Struct, path)
	case KindList:
		elems, err := d.readElems(t.Elem, path)
		if err != nil {
			return nil, err
		}
		return List(elems), nil
	case KindSet:
		elems, err := d.readElems(t.Elem, path)
		if err != nil {
			return nil, err
		}
		return Set(elems), nil
	case KindMap:
		return d.readMap(t, path)
	}
	return nil, decodeErrorf(path, "unsupported kind %v", t.Kind)
}

func (d *Decoder) readElems(elem *Type, path string) ([]any, error) {
	if err := d.enter(path); err != nil {
		return nil, err
	}
	defer d.leave()

	tag, err := d.readByte(path)
	if err != nil {
		return nil, err
	}
	if want := elem.Kind.TType(); TType(tag) != want {
		return nil, decodeErrorf(path, "expected element tag %v, found %v", want, TType(tag))
	}
	n, err := d.readSize(path)
	if err != nil {
		return nil, err
	}
	elems := make([]any, 0, min(n, d.Remaining()))
	for i := 0; i < n; i++ {
		v, err := d.read(elem, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return elems, nil
}

func (d *Decoder) readMap(t *Type, path string) (any, error) {
	if err := d.enter(path); err != nil {
		return nil, err
	}
	defer d.leave()

	ktag, err := d.readByte(path)
	if err != nil {
		return nil, err
	}
	vtag, err := d.readByte(path)
	if err != nil {
		return nil, err
	}
	if want := t.Key.Kind.TType(); TType(ktag) != want {
		return nil, decodeErrorf(path, "expected key tag %v, found %v", want, TType(ktag))
	}
	if want := t.Elem.Kind.TType(); TType(vtag) != want {
		return nil, decodeErrorf(path, "expected value tag %v, found %v", want, TType(vtag))
	}
	n, err := d.readSize(path)
	if err != nil {
		return nil, err
	}
	m := make(Map, 0, min(n, d.Remaining()))
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("%s[%d]", path, i)
		k, err := d.read(t.Key, p+".key")
		if err != nil {
			return nil, err
		}
		v, err := d.read(t.Elem, p+".value")
		if err != nil {
			return nil, err
		}
		m = append(m, MapEntry{Key: k, Value: v})
	}
	return m, nil
}

// Skip consumes one value with wire tag tt without decoding it.
func (d *Decoder) Skip(tt TType) error {
	return d.skip(tt, "")
}

func (d *Decoder) skip(tt TType, path string) error {
	switch tt {
	case BOOL, BYTE:
		return d.advance(1, path)
	case I16:
		return d.advance(2, path)
	case I32:
		return d.advance(4, path)
	case I64, DOUBLE:
		return d.advance(8, path)
	case STRING:
		_, err := d.readBinary(path)
		return err
	case STRUCT:
		if err := d.enter(path); err != nil {
			return err
		}
		defer d.leave()
		for {
			tag, err := d.readByte(path)
			if err != nil {
				return err
			}
			if TType(tag) == STOP {
				return nil
			}
			if err := d.advance(2, path); err != nil {
				return err
			}
			if err := d.skip(TType(tag), path); err != nil {
				return err
			}
		}
	case LIST, SET:
		if err := d.enter(path); err != nil {
			return err
		}
		defer d.leave()
		tag, err := d.readByte(path)
		if err != nil {
			return err
		}
		n, err := d.readSize(path)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := d.skip(TType(tag), path); err != nil {
				return err
			}
		}
		return nil
	case MAP:
		if err := d.enter(path); err != nil {
			return err
		}
		defer d.leave()
		ktag, err := d.readByte(path)
		if err != nil {
			return err
		}
		vtag, err := d.readByte(path)
		if err != nil {
			return err
		}
		n, err := d.readSize(path)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := d.skip(TType(ktag), path); err != nil {
				return err
			}
			if err := d.skip(TType(vtag), path); err != nil {
				return err
			}
		}
		return nil
	}
	return decodeErrorf(path, "cannot skip unknown tag %v", tt)
}

func (d *Decoder) enter(path string) error {
	d.depth++
	if d.depth > maxDepth {
		return decodeErrorf(path, "nesting deeper than %d", maxDepth)
	}
	return nil
}

func (d *Decoder) leave() {
	d.depth--
}

func (d *Decoder) advance(n int, path string) error {
	if d.Remaining() < n {
		return decodeErrorf(path, "unexpected end of input")
	}
	d.pos += n
	return nil
}

func (d *Decoder) take(n int, path string) ([]byte, error) {
	if d.Remaining() < n {
		return nil, decodeErrorf(path, "unexpected end of input")
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) readByte(path string) (byte, error) {
	b, err := d.take(1, path)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) readI16(path string) (int16, error) {
	b, err := d.take(2, path)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (d *Decoder) readI32(path string) (int32, error) {
	b, err := d.take(4, path)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (d *Decoder) readI64(path string) (int64, error) {
	b, err := d.take(8, path)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// readSize reads a collection count or a byte length. A negative size is
// malformed input.
func (d *Decoder) readSize(path string) (int, error) {
	n, err := d.readI32(path)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, decodeErrorf(path, "negative size %d", n)
	}
	return int(n), nil
}

func (d *Decoder) readBinary(path string) ([]byte, error) {
	n, err := d.readSize(path)
	if err != nil {
		return nil, err
	}
	if n > d.Remaining() {
		return nil, decodeErrorf(path, "length %d exceeds remaining %d bytes", n, d.Remaining())
	}
	return d.take(n, path)
}
