package notes

import (
	"context"
	"fmt"

	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/session"
	"github.com/jun/gophnote/internal/store"
)

// ListNotebooks returns every notebook the user can see: personal notebooks,
// notebooks shared into the account, joined public notebooks and business
// notebooks. The list is cached until CleanNotebookCache.
func (s *Service) ListNotebooks(ctx context.Context, cb store.Callback[[]*model.Notebook]) {
	async(cb, func() ([]*model.Notebook, error) {
		return s.listNotebooks(ctx)
	})
}

// ListWritableNotebooks is ListNotebooks restricted to notebooks that accept
// new notes.
func (s *Service) ListWritableNotebooks(ctx context.Context, cb store.Callback[[]*model.Notebook]) {
	async(cb, func() ([]*model.Notebook, error) {
		all, err := s.listNotebooks(ctx)
		if err != nil {
			return nil, err
		}
		var out []*model.Notebook
		for _, nb := range all {
			if nb.AllowsWriting {
				out = append(out, nb)
			}
		}
		return out, nil
	})
}

// CleanNotebookCache drops the cached notebook list.
func (s *Service) CleanNotebookCache() {
	s.mu.Lock()
	s.notebooks = nil
	s.mu.Unlock()
}

func (s *Service) listNotebooks(ctx context.Context) ([]*model.Notebook, error) {
	if !s.session.IsAuthenticated() {
		s.CleanNotebookCache()
		return nil, session.ErrNotAuthenticated
	}
	generation := s.session.Generation()
	s.mu.Lock()
	cached := s.notebooks
	if s.notebooksGeneration != generation {
		cached = nil
	}
	s.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := s.group.Do(fmt.Sprintf("notebooks/%d", generation), func() (any, error) {
		nbs, err := s.fetchNotebooks(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		if s.session.Generation() == generation {
			s.notebooks = nbs
			s.notebooksGeneration = generation
		}
		s.mu.Unlock()
		return nbs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*model.Notebook), nil
}

func (s *Service) fetchNotebooks(ctx context.Context) ([]*model.Notebook, error) {
	personal, err := s.session.NoteStore(ctx, session.Personal())
	if err != nil {
		return nil, err
	}
	owned, err := call(ctx, personal.ListNotebooks)
	if err != nil {
		return nil, fmt.Errorf("failed to list notebooks: %w", err)
	}
	linked, err := call(ctx, personal.ListLinkedNotebooks)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked notebooks: %w", err)
	}

	var out []*model.Notebook
	for _, nb := range owned {
		out = append(out, model.NewPersonalNotebook(nb, s.session.UserDisplayName()))
	}

	business, err := s.businessNotebooks(ctx)
	if err != nil {
		return nil, err
	}

	for _, ln := range linked {
		switch {
		case ln.BusinessID != 0 && business != nil:
			sn, err := s.sharedNotebook(ctx, ln)
			if err != nil {
				s.log.Errorf("skipping business notebook %s: %v", ln.ShareName, err)
				continue
			}
			rec, ok := business.records[sn.NotebookGUID]
			if !ok {
				rec = &edam.Notebook{
					GUID:     sn.NotebookGUID,
					Name:     ln.ShareName,
					Business: &edam.BusinessNotebook{Privilege: sn.Privilege},
				}
			}
			if _, seen := business.joined[sn.NotebookGUID]; !seen {
				business.joinedOrder = append(business.joinedOrder, sn.NotebookGUID)
			}
			business.joined[sn.NotebookGUID] = model.NewBusinessNotebook(rec, ln, s.session.BusinessDisplayName(), s.session.UserID())
		case ln.SharedNotebookGlobalID == "":
			out = append(out, model.NewPublicNotebook(ln))
		default:
			sn, err := s.sharedNotebook(ctx, ln)
			if err != nil {
				s.log.Errorf("skipping shared notebook %s: %v", ln.ShareName, err)
				continue
			}
			out = append(out, model.NewSharedNotebook(ln, sn))
		}
	}

	if business != nil {
		for _, rec := range business.order {
			if nb, ok := business.joined[rec.GUID]; ok {
				out = append(out, nb)
				delete(business.joined, rec.GUID)
				continue
			}
			out = append(out, model.NewBusinessNotebook(rec, nil, s.session.BusinessDisplayName(), s.session.UserID()))
		}
		for _, guid := range business.joinedOrder {
			if nb, ok := business.joined[guid]; ok {
				out = append(out, nb)
			}
		}
	}
	return out, nil
}

type businessListing struct {
	order   []*edam.Notebook
	records map[string]*edam.Notebook
	joined  map[string]*model.Notebook
	// Keys of joined in linked notebook order.
	joinedOrder []string
}

// businessNotebooks lists the business store, or returns nil for users
// outside a business.
func (s *Service) businessNotebooks(ctx context.Context) (*businessListing, error) {
	if !s.session.IsBusinessUser() {
		return nil, nil
	}
	ns, err := s.session.NoteStore(ctx, session.Business())
	if err != nil {
		return nil, err
	}
	nbs, err := call(ctx, ns.ListNotebooks)
	if err != nil {
		return nil, fmt.Errorf("failed to list business notebooks: %w", err)
	}
	l := &businessListing{
		order:   nbs,
		records: make(map[string]*edam.Notebook, len(nbs)),
		joined:  make(map[string]*model.Notebook),
	}
	for _, nb := range nbs {
		l.records[nb.GUID] = nb
	}
	return l, nil
}

func (s *Service) sharedNotebook(ctx context.Context, ln *edam.LinkedNotebook) (*edam.SharedNotebook, error) {
	ns, err := s.session.NoteStore(ctx, session.Linked(model.LinkedNotebookRefFrom(ln)))
	if err != nil {
		return nil, err
	}
	return call(ctx, ns.GetSharedNotebookByAuth)
}

// appNotebook returns the single linked notebook the user granted access to.
func (s *Service) appNotebook(ctx context.Context) (*model.Notebook, error) {
	nbs, err := s.listNotebooks(ctx)
	if err != nil {
		return nil, err
	}
	for _, nb := range nbs {
		if nb.Linked != nil {
			return nb, nil
		}
	}
	return nil, ErrNoAppNotebook
}
