// Package rpc performs single remote calls: it pairs a method's argument and
// result schemas with a Transport, and maps the response envelope into a value,
// an ApplicationError, or a ProtocolError.
package rpc

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/transport"
	"github.com/jun/gophnote/internal/wire"
)

// ExceptionDecoder turns a populated exception slot of a result struct into an error.
type ExceptionDecoder func(s wire.Struct) error

// Method describes one remote procedure. Result field 0 holds the return
// value and is absent for void methods; every other result field is a
// declared exception.
type Method struct {
	Name       string
	Args       *wire.StructSchema
	Result     *wire.StructSchema
	AuthArg    int16
	Exceptions map[int16]ExceptionDecoder
}

// Void reports whether the method returns no value.
func (m *Method) Void() bool {
	_, ok := m.Result.Field(0)
	return !ok
}

// ApplicationExceptionSchema is the struct carried by an EXCEPTION envelope.
var ApplicationExceptionSchema = &wire.StructSchema{
	Name: "TApplicationException",
	Fields: []wire.Field{
		{ID: 1, Name: "message", Type: wire.String, Optional: true},
		{ID: 2, Name: "type", Type: wire.Int32, Optional: true},
	},
}

// Invoker performs calls against one endpoint with a fixed token.
type Invoker struct {
	transport transport.Transport
	url       string
	token     string
	seq       atomic.Int32
	log       logging.Logger
}

// NewInvoker binds an endpoint URL and a token snapshot.
func NewInvoker(t transport.Transport, url, token string, log logging.Logger) *Invoker {
	if log == nil {
		log = logging.Nop()
	}
	return &Invoker{transport: t, url: url, token: token, log: log}
}

func (i *Invoker) URL() string   { return i.url }
func (i *Invoker) Token() string { return i.token }

// Call encodes args as a CALL to m, sends it and decodes the reply. When the
// method declares an auth argument and args leaves it unset, the invoker's
// token is filled in.
func (i *Invoker) Call(ctx context.Context, m *Method, args wire.Struct) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	full := make(wire.Struct, len(args)+1)
	for k, v := range args {
		full[k] = v
	}
	if m.AuthArg != 0 && !full.Has(m.AuthArg) && i.token != "" {
		full[m.AuthArg] = i.token
	}

	seq := i.seq.Add(1)
	enc := wire.NewEncoder()
	enc.WriteMessageBegin(m.Name, wire.MessageCall, seq)
	if err := enc.WriteStruct(full, m.Args); err != nil {
		return nil, err
	}

	resp, err := i.transport.Send(ctx, i.url, enc.Bytes(), i.token)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, ErrCancelled
		}
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	v, err := i.decodeReply(m, seq, resp)
	var pe *ProtocolError
	if errors.As(err, &pe) {
		i.log.Errorf("%s %s: %v", m.Name, i.url, pe)
	}
	return v, err
}

func (i *Invoker) decodeReply(m *Method, seq int32, resp []byte) (any, error) {
	dec := wire.NewDecoder(resp)
	name, typ, gotSeq, err := dec.ReadMessageBegin()
	if err != nil {
		return nil, &ProtocolError{Method: m.Name, Code: ProtoProtocolError, Err: err}
	}

	if typ == wire.MessageException {
		ex, err := dec.ReadStruct(ApplicationExceptionSchema)
		if err != nil {
			return nil, &ProtocolError{Method: m.Name, Code: ProtoProtocolError, Err: err}
		}
		return nil, &ProtocolError{
			Method:  m.Name,
			Code:    ProtocolErrorCode(ex.I32(2)),
			Message: ex.Str(1),
		}
	}
	if typ != wire.MessageReply {
		return nil, &ProtocolError{Method: m.Name, Code: ProtoInvalidMessageType, Message: "unexpected message type"}
	}
	if name != m.Name {
		return nil, &ProtocolError{Method: m.Name, Code: ProtoWrongMethodName, Message: "reply for " + name}
	}
	if gotSeq != seq {
		return nil, &ProtocolError{Method: m.Name, Code: ProtoBadSequenceID, Message: "out of sequence response"}
	}

	result, err := dec.ReadStruct(m.Result)
	if err != nil {
		return nil, &ProtocolError{Method: m.Name, Code: ProtoProtocolError, Err: err}
	}

	for _, f := range m.Result.Fields {
		if f.ID == 0 || !result.Has(f.ID) {
			continue
		}
		ex, _ := result[f.ID].(wire.Struct)
		if decode, ok := m.Exceptions[f.ID]; ok {
			return nil, decode(ex)
		}
		return nil, &ApplicationError{Kind: KindUnknown, Message: f.Name}
	}

	if v, ok := result[0]; ok {
		return v, nil
	}
	if m.Void() {
		return nil, nil
	}
	return nil, &ProtocolError{Method: m.Name, Code: ProtoMissingResult, Message: "unknown result"}
}
