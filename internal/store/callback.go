package store

import (
	"context"

	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/wire"
)

// Callback receives a typed result. It runs on the client's background
// goroutine; callers that need another context must redispatch.
type Callback[R any] func(result R, err error)

// CallbackResult is what a blocking callback delivers.
type CallbackResult[R any] struct {
	Result R
	Err    error
}

// Blocking returns a callback that forwards into the returned channel.
func Blocking[R any]() (Callback[R], <-chan CallbackResult[R]) {
	c := make(chan CallbackResult[R], 1)
	cb := func(result R, err error) {
		c <- CallbackResult[R]{Result: result, Err: err}
	}
	return cb, c
}

// Await blocks for a blocking callback's result or ctx.
func Await[R any](ctx context.Context, c <-chan CallbackResult[R]) (R, error) {
	select {
	case r := <-c:
		return r.Result, r.Err
	case <-ctx.Done():
		var empty R
		return empty, ctx.Err()
	}
}

func invoke[R any](c *Client, m *rpc.Method, args wire.Struct, convert func(any) R, cb Callback[R]) *Pending {
	call := func(ctx context.Context, inv *rpc.Invoker) (any, error) {
		v, err := inv.Call(ctx, m, args)
		if err != nil {
			return nil, err
		}
		return convert(v), nil
	}
	return c.Enqueue(call, typed(cb))
}

func typed[R any](cb Callback[R]) Done {
	return func(result any, err error) {
		if cb == nil {
			return
		}
		var r R
		if err == nil {
			r, _ = result.(R)
		}
		cb(r, err)
	}
}

func asStruct[R any](from func(wire.Struct) R) func(any) R {
	return func(v any) R {
		s, _ := v.(wire.Struct)
		return from(s)
	}
}

func asList[R any](from func(wire.Struct) R) func(any) []R {
	return func(v any) []R {
		l, _ := v.(wire.List)
		out := make([]R, 0, len(l))
		for _, e := range l {
			if s, ok := e.(wire.Struct); ok {
				out = append(out, from(s))
			}
		}
		return out
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt32(v any) int32 {
	n, _ := v.(int32)
	return n
}
