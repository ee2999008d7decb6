package notes

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/router"
	"github.com/jun/gophnote/internal/session"
	"github.com/jun/gophnote/internal/store"
)

// Scope is a set of places FindNotes searches when no notebook is given.
type Scope uint

const (
	ScopeNone           Scope = 0
	ScopePersonal       Scope = 1 << 0
	ScopePersonalLinked Scope = 1 << 1
	ScopeBusiness       Scope = 1 << 2
	// ScopeAppNotebook searches only the notebook the app was granted and
	// overrides every other flag.
	ScopeAppNotebook Scope = 1 << 3

	ScopeDefault = ScopePersonal
	ScopeAll     = ScopePersonal | ScopePersonalLinked | ScopeBusiness
)

// SortOrder selects a sort kind, optionally combined with SortReverse.
type SortOrder uint

const (
	SortTitle           SortOrder = 1 << 0
	SortRecentlyCreated SortOrder = 1 << 1
	SortRecentlyUpdated SortOrder = 1 << 2
	// SortRelevance is only meaningful for a single store. Results from
	// several stores keep each store's order, personal first.
	SortRelevance SortOrder = 1 << 3

	SortReverse SortOrder = 1 << 16

	SortDefault = SortTitle
	sortKinds   = SortTitle | SortRecentlyCreated | SortRecentlyUpdated | SortRelevance
)

func (o SortOrder) kind() SortOrder {
	k := o & sortKinds
	switch {
	case k&SortTitle != 0:
		return SortTitle
	case k&SortRecentlyCreated != 0:
		return SortRecentlyCreated
	case k&SortRecentlyUpdated != 0:
		return SortRecentlyUpdated
	case k&SortRelevance != 0:
		return SortRelevance
	}
	return SortTitle
}

func (o SortOrder) reversed() bool { return o&SortReverse != 0 }

// Search is a query in the service's search grammar. The zero Search
// matches every note.
type Search struct {
	Query string
}

// NewSearch returns a search for query.
func NewSearch(query string) Search { return Search{Query: query} }

// CreatedByThisApplication matches notes created with this service's
// source application name.
func (s *Service) CreatedByThisApplication() Search {
	return Search{Query: fmt.Sprintf("sourceApplication:%q", s.sourceApp)}
}

// searchPlan is one store to query.
type searchPlan struct {
	target session.Target
	// notebook limits the query to one notebook when set.
	notebook *model.Notebook
	// notebooks resolves result notebooks when the query spans a store.
	notebooks map[string]*model.Notebook
}

// FindNotes searches notebook when given, otherwise scope. maxResults zero
// means all results. Results from more than one store are merged and sorted
// here.
func (s *Service) FindNotes(ctx context.Context, search Search, notebook *model.Notebook, scope Scope, order SortOrder, maxResults int, cb store.Callback[[]*model.FindNotesResult]) {
	async(cb, func() ([]*model.FindNotesResult, error) {
		return s.findNotes(ctx, search, notebook, scope, order, maxResults)
	})
}

func (s *Service) findNotes(ctx context.Context, search Search, notebook *model.Notebook, scope Scope, order SortOrder, maxResults int) ([]*model.FindNotesResult, error) {
	plans, err := s.plan(ctx, notebook, scope)
	if err != nil {
		return nil, err
	}

	filter := &edam.NoteFilter{Words: search.Query}
	switch order.kind() {
	case SortTitle:
		filter.Order, filter.Ascending = edam.NoteSortTitle, true
	case SortRecentlyCreated:
		filter.Order = edam.NoteSortCreated
	case SortRecentlyUpdated:
		filter.Order = edam.NoteSortUpdated
	case SortRelevance:
		filter.Order = edam.NoteSortRelevance
	}
	if order.reversed() {
		filter.Ascending = !filter.Ascending
	}
	spec := &edam.NotesMetadataResultSpec{
		IncludeTitle:        true,
		IncludeCreated:      true,
		IncludeUpdated:      true,
		IncludeNotebookGUID: true,
	}

	var results []*model.FindNotesResult
	for _, p := range plans {
		ns, err := s.session.NoteStore(ctx, p.target)
		if err != nil {
			return nil, err
		}
		f := *filter
		if p.notebook != nil {
			f.NotebookGUID = p.notebook.GUID
		}
		cb, c := store.Blocking[[]*edam.NoteMetadata]()
		ns.FindAllNotesMetadata(&f, spec, maxResults, false, cb)
		found, err := store.Await(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to find notes in %v store: %w", p.target, err)
		}
		for _, md := range found {
			results = append(results, p.result(md))
		}
	}

	if len(plans) > 1 {
		sortResults(results, order)
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (p *searchPlan) result(md *edam.NoteMetadata) *model.FindNotesResult {
	nb := p.notebook
	if nb == nil {
		nb = p.notebooks[md.NotebookGUID]
	}
	r := &model.FindNotesResult{
		Notebook: nb,
		Title:    md.Title,
		Created:  millis(md.Created),
		Updated:  millis(md.Updated),
	}
	if nb != nil {
		r.NoteRef = nb.NoteRef(md.GUID)
	} else {
		r.NoteRef = &model.NoteRef{Type: model.NoteTypePersonal, GUID: md.GUID}
		if p.target.Kind == session.TargetBusiness {
			r.NoteRef.Type = model.NoteTypeBusiness
		}
	}
	return r
}

func (s *Service) plan(ctx context.Context, notebook *model.Notebook, scope Scope) ([]*searchPlan, error) {
	if notebook != nil {
		return []*searchPlan{{target: router.RouteNotebook(notebook), notebook: notebook}}, nil
	}
	if scope == ScopeNone {
		scope = ScopeDefault
	}

	nbs, err := s.listNotebooks(ctx)
	if err != nil {
		return nil, err
	}

	if scope&ScopeAppNotebook != 0 {
		if s.session.AppNotebookIsLinked() {
			nb, err := s.appNotebook(ctx)
			if err != nil {
				return nil, err
			}
			return []*searchPlan{{target: router.RouteNotebook(nb), notebook: nb}}, nil
		}
		scope = ScopePersonal
	}

	var plans []*searchPlan
	if scope&ScopePersonal != 0 {
		p := &searchPlan{target: session.Personal(), notebooks: map[string]*model.Notebook{}}
		for _, nb := range nbs {
			if nb.IsOwnedByUser && !nb.IsBusiness {
				p.notebooks[nb.GUID] = nb
			}
		}
		plans = append(plans, p)
	}
	if scope&ScopePersonalLinked != 0 {
		for _, nb := range nbs {
			if nb.Linked != nil && !nb.IsBusiness {
				plans = append(plans, &searchPlan{target: session.Linked(nb.Linked), notebook: nb})
			}
		}
	}
	if scope&ScopeBusiness != 0 && s.session.IsBusinessUser() {
		p := &searchPlan{target: session.Business(), notebooks: map[string]*model.Notebook{}}
		for _, nb := range nbs {
			if nb.IsBusiness {
				p.notebooks[nb.GUID] = nb
			}
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func sortResults(results []*model.FindNotesResult, order SortOrder) {
	var less func(a, b *model.FindNotesResult) int
	switch order.kind() {
	case SortTitle:
		less = func(a, b *model.FindNotesResult) int {
			return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case SortRecentlyCreated:
		less = func(a, b *model.FindNotesResult) int { return b.Created.Compare(a.Created) }
	case SortRecentlyUpdated:
		less = func(a, b *model.FindNotesResult) int { return b.Updated.Compare(a.Updated) }
	default:
		return
	}
	if order.reversed() {
		forward := less
		less = func(a, b *model.FindNotesResult) int { return forward(b, a) }
	}
	slices.SortStableFunc(results, less)
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
