// Package notes implements the note operations applications call: listing
// notebooks, uploading, sharing, deleting, downloading and finding notes
// across the personal, linked and business stores of a session.
package notes

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/router"
	"github.com/jun/gophnote/internal/session"
	"github.com/jun/gophnote/internal/store"
)

var (
	ErrReplaceTargetRequired = errors.New("notes: replace policy needs a note to replace")
	ErrNotebookWithReplace   = errors.New("notes: a notebook cannot be given with a replace policy")
	ErrReadOnlyNotebook      = errors.New("notes: notebook does not allow writing")
	ErrNoShareURL            = errors.New("notes: no web api url prefix for the note's store")
	ErrNoAppNotebook         = errors.New("notes: linked app notebook not found")
)

// Options configure a Service.
type Options struct {
	// SourceApplication is recorded on created notes and used by
	// CreatedByThisApplication searches.
	SourceApplication string
	Logger            logging.Logger
}

// Service runs note operations against one session.
type Service struct {
	session   *session.Session
	router    *router.Router
	sourceApp string
	log       logging.Logger

	mu        sync.Mutex
	notebooks []*model.Notebook
	// Session generation the cached notebooks belong to.
	notebooksGeneration int
	group               singleflight.Group
}

func New(s *session.Session, opts Options) *Service {
	return &Service{
		session:   s,
		router:    router.New(s),
		sourceApp: opts.SourceApplication,
		log:       logging.OrDefault(opts.Logger),
	}
}

// SourceApplication returns the name recorded on created notes.
func (s *Service) SourceApplication() string { return s.sourceApp }

// call enqueues one store call and waits for its result.
func call[R any](ctx context.Context, start func(store.Callback[R]) *store.Pending) (R, error) {
	cb, c := store.Blocking[R]()
	start(cb)
	return store.Await(ctx, c)
}

// async runs f on a new goroutine and hands its result to cb, if any.
func async[R any](cb store.Callback[R], f func() (R, error)) {
	go func() {
		r, err := f()
		if cb != nil {
			cb(r, err)
		}
	}()
}
