// Package router maps note references and notebooks to the store that holds
// them.
package router

import (
	"context"

	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/session"
	"github.com/jun/gophnote/internal/store"
)

// Route returns the store target for ref.
func Route(ref *model.NoteRef) session.Target {
	switch ref.Type {
	case model.NoteTypeBusiness:
		return session.Business()
	case model.NoteTypeLinked:
		return session.Linked(ref.Linked)
	}
	return session.Personal()
}

// RouteNotebook returns the store target for nb. Business notebooks go to the
// business store even when reached through a linked notebook record.
func RouteNotebook(nb *model.Notebook) session.Target {
	switch {
	case nb.IsBusiness:
		return session.Business()
	case nb.Linked != nil:
		return session.Linked(nb.Linked)
	}
	return session.Personal()
}

// Router resolves targets against a Session.
type Router struct {
	session *session.Session
}

func New(s *session.Session) *Router {
	return &Router{session: s}
}

// NoteStoreForNote returns the client for ref's store.
func (r *Router) NoteStoreForNote(ctx context.Context, ref *model.NoteRef) (*store.NoteStore, error) {
	return r.session.NoteStore(ctx, Route(ref))
}

// NoteStoreForNotebook returns the client for nb's store. A nil notebook
// means the personal store.
func (r *Router) NoteStoreForNotebook(ctx context.Context, nb *model.Notebook) (*store.NoteStore, error) {
	if nb == nil {
		return r.session.NoteStore(ctx, session.Personal())
	}
	return r.session.NoteStore(ctx, RouteNotebook(nb))
}
