// Package store queues RPC calls against one note service endpoint. Calls run
// one at a time in submission order and complete through callbacks on a
// background goroutine.
package store

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/transport"
)

// Call is the work of one queued entry.
type Call func(ctx context.Context, inv *rpc.Invoker) (any, error)

// Done receives the outcome of a queued entry.
type Done func(result any, err error)

// Pending is a handle on a queued call.
type Pending struct {
	ID ulid.ULID

	call   Call
	done   Done
	ctx    context.Context
	cancel context.CancelFunc

	doneCh chan struct{}
	result any
	err    error
}

// Done is closed once the call has completed and its callback has returned.
func (p *Pending) Done() <-chan struct{} {
	return p.doneCh
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (p *Pending) Result() (any, error) {
	return p.result, p.err
}

// Options configure a Client.
type Options struct {
	Transport transport.Transport
	URL       string
	Token     string
	Logger    logging.Logger
	// OnError sees every failed call before its callback runs.
	OnError func(err error)
}

// Client is bound to one endpoint and one token for its lifetime.
type Client struct {
	ctx     context.Context
	cancel  context.CancelFunc
	invoker *rpc.Invoker
	log     logging.Logger
	onError func(error)

	mu      sync.Mutex
	queue   []*Pending
	running bool
	closed  error
}

// NewClient returns an idle Client.
func NewClient(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	t := opts.Transport
	if t == nil {
		t = transport.NewHTTPTransport()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ctx:     ctx,
		cancel:  cancel,
		invoker: rpc.NewInvoker(t, opts.URL, opts.Token, log),
		log:     log,
		onError: opts.OnError,
	}
}

func (c *Client) URL() string   { return c.invoker.URL() }
func (c *Client) Token() string { return c.invoker.Token() }

// Enqueue appends call to the queue and starts it if nothing is in flight.
// done may be nil.
func (c *Client) Enqueue(call Call, done Done) *Pending {
	ctx, cancel := context.WithCancel(c.ctx)
	p := &Pending{
		ID:     ulid.Make(),
		call:   call,
		done:   done,
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}

	c.mu.Lock()
	c.queue = append(c.queue, p)
	start := !c.running
	c.running = true
	c.mu.Unlock()

	if start {
		go c.drain()
	}
	return p
}

// Len returns the number of queued calls, including the one in flight.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// CancelFirst cancels the head of the queue. The head completes with
// rpc.ErrCancelled and the queue moves on. It is a no-op when idle.
func (c *Client) CancelFirst() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		c.queue[0].cancel()
	}
}

// Close cancels the head and completes every queued call behind it, and every
// later Enqueue, with err.
func (c *Client) Close(err error) {
	c.mu.Lock()
	if c.closed != nil {
		c.mu.Unlock()
		return
	}
	c.closed = err
	n := len(c.queue)
	c.mu.Unlock()

	c.log.Infof("closing store client %s with %d queued: %v", c.URL(), n, err)
	c.cancel()
}

// Closed returns the error passed to Close, or nil.
func (c *Client) Closed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.running = false
			c.mu.Unlock()
			return
		}
		p := c.queue[0]
		closed := c.closed
		c.mu.Unlock()

		var result any
		var err error
		if closed != nil {
			err = closed
		} else {
			result, err = p.call(p.ctx, c.invoker)
			if p.ctx.Err() != nil {
				result, err = nil, rpc.ErrCancelled
			}
		}

		c.mu.Lock()
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.complete(p, result, err)
	}
}

func (c *Client) complete(p *Pending, result any, err error) {
	p.cancel()
	p.result, p.err = result, err
	if err != nil && c.onError != nil {
		c.onError(err)
	}
	if p.done != nil {
		p.done(result, err)
	}
	close(p.doneCh)
}
