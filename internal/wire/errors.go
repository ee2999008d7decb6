package wire

import "fmt"

// EncodeError reports a value that does not match its declared schema.
type EncodeError struct {
	Path string
	Msg  string
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("wire: encode: %s", e.Msg)
	}
	return fmt.Sprintf("wire: encode %s: %s", e.Path, e.Msg)
}

// DecodeError reports malformed input: a tag that differs from the expected
// one, a missing required field, or a truncated stream.
type DecodeError struct {
	Path string
	Msg  string
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("wire: decode: %s", e.Msg)
	}
	return fmt.Sprintf("wire: decode %s: %s", e.Path, e.Msg)
}

func encodeErrorf(path, format string, a ...any) error {
	return &EncodeError{Path: path, Msg: fmt.Sprintf(format, a...)}
}

func decodeErrorf(path, format string, a ...any) error {
	return &DecodeError{Path: path, Msg: fmt.Sprintf(format, a...)}
}

func fieldPath(parent string, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
