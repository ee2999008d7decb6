package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jun/gophnote/internal/wire"
)

// HandlerFunc serves one call. It returns the full result struct: field 0 for
// the return value, or one populated exception field.
type HandlerFunc func(ctx context.Context, args wire.Struct) (wire.Struct, error)

type route struct {
	method  *Method
	handler HandlerFunc
}

// Dispatcher decodes CALL envelopes and routes them by method name. It is
// the server half used by the in-process note service.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[string]route
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{routes: make(map[string]route)}
}

// Handle registers h for m.
func (d *Dispatcher) Handle(m *Method, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[m.Name] = route{method: m, handler: h}
}

// Serve handles one encoded request and returns the encoded response.
// Failures the caller cannot answer with an envelope are returned as errors.
func (d *Dispatcher) Serve(ctx context.Context, body []byte) ([]byte, error) {
	dec := wire.NewDecoder(body)
	name, typ, seq, err := dec.ReadMessageBegin()
	if err != nil {
		return nil, err
	}
	if typ != wire.MessageCall && typ != wire.MessageOneway {
		return WriteException(name, seq, ProtoInvalidMessageType, "expected a call"), nil
	}

	d.mu.RLock()
	r, ok := d.routes[name]
	d.mu.RUnlock()
	if !ok {
		return WriteException(name, seq, ProtoUnknownMethod, fmt.Sprintf("unknown method %s", name)), nil
	}

	args, err := dec.ReadStruct(r.method.Args)
	if err != nil {
		return WriteException(name, seq, ProtoProtocolError, err.Error()), nil
	}

	result, err := r.handler(ctx, args)
	if err != nil {
		var pe *ProtocolError
		if errors.As(err, &pe) {
			return WriteException(name, seq, pe.Code, pe.Message), nil
		}
		return WriteException(name, seq, ProtoInternalError, err.Error()), nil
	}
	if result == nil {
		result = wire.Struct{}
	}

	enc := wire.NewEncoder()
	enc.WriteMessageBegin(name, wire.MessageReply, seq)
	if err := enc.WriteStruct(result, r.method.Result); err != nil {
		return WriteException(name, seq, ProtoInternalError, err.Error()), nil
	}
	return enc.Bytes(), nil
}

// WriteException encodes an EXCEPTION envelope.
func WriteException(name string, seq int32, code ProtocolErrorCode, msg string) []byte {
	enc := wire.NewEncoder()
	enc.WriteMessageBegin(name, wire.MessageException, seq)
	// The schema is all-optional with matching kinds, so this cannot fail.
	_ = enc.WriteStruct(wire.Struct{1: msg, 2: int32(code)}, ApplicationExceptionSchema)
	return enc.Bytes()
}
