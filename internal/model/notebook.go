package model

import "github.com/jun/gophnote/internal/edam"

// Notebook describes a notebook the user can see, whichever store it lives in.
type Notebook struct {
	GUID             string
	Name             string
	OwnerDisplayName string
	AllowsWriting    bool

	IsShared       bool
	IsOwnShared    bool
	IsJoinedShared bool
	IsPublic       bool
	IsOwnPublic    bool
	IsJoinedPublic bool
	IsBusiness     bool
	IsOwnedByUser  bool
	IsDefault      bool

	// Linked is set for notebooks reached through a linked notebook record.
	Linked *LinkedNotebookRef
}

// NewPersonalNotebook describes a notebook in the user's own account.
func NewPersonalNotebook(nb *edam.Notebook, ownerName string) *Notebook {
	shared := len(nb.SharedNotebooks) > 0
	return &Notebook{
		GUID:             nb.GUID,
		Name:             nb.Name,
		OwnerDisplayName: ownerName,
		AllowsWriting:    true,
		IsShared:         shared,
		IsOwnShared:      shared,
		IsPublic:         nb.Published,
		IsOwnPublic:      nb.Published,
		IsOwnedByUser:    true,
		IsDefault:        nb.DefaultNotebook,
	}
}

// NewSharedNotebook describes a notebook shared into the account by another
// user. shared is the share record read through the linked store.
func NewSharedNotebook(linked *edam.LinkedNotebook, shared *edam.SharedNotebook) *Notebook {
	nb := &Notebook{
		GUID:             linked.GUID,
		Name:             linked.ShareName,
		OwnerDisplayName: linked.Username,
		IsShared:         true,
		IsJoinedShared:   true,
		Linked:           LinkedNotebookRefFrom(linked),
	}
	if shared != nil {
		nb.GUID = shared.NotebookGUID
		nb.AllowsWriting = shared.Privilege >= edam.PrivilegeModifyNotes
	}
	return nb
}

// NewPublicNotebook describes a public notebook the user has joined. Public
// notebooks are read only.
func NewPublicNotebook(linked *edam.LinkedNotebook) *Notebook {
	return &Notebook{
		GUID:             linked.GUID,
		Name:             linked.ShareName,
		OwnerDisplayName: linked.Username,
		IsPublic:         true,
		IsJoinedPublic:   true,
		Linked:           LinkedNotebookRefFrom(linked),
	}
}

// NewBusinessNotebook describes a notebook in the user's business. nb is the
// record from the business store; linked is nil for notebooks the user owns.
func NewBusinessNotebook(nb *edam.Notebook, linked *edam.LinkedNotebook, businessName string, userID int32) *Notebook {
	out := &Notebook{
		GUID:             nb.GUID,
		Name:             nb.Name,
		OwnerDisplayName: businessName,
		IsBusiness:       true,
		IsShared:         len(nb.SharedNotebooks) > 0,
		IsPublic:         nb.Published,
		IsDefault:        nb.DefaultNotebook,
		Linked:           LinkedNotebookRefFrom(linked),
	}
	if nb.Contact != nil {
		out.OwnerDisplayName = nb.Contact.Name
		out.IsOwnedByUser = nb.Contact.ID == userID
	} else {
		out.IsOwnedByUser = linked == nil
	}
	if nb.Business != nil {
		out.AllowsWriting = nb.Business.Privilege >= edam.PrivilegeModifyNotes
	} else {
		out.AllowsWriting = out.IsOwnedByUser
	}
	if r := nb.Restrictions; r != nil && r.NoCreateNotes {
		out.AllowsWriting = false
	}
	if out.IsOwnedByUser {
		out.IsOwnShared = out.IsShared
		out.IsOwnPublic = out.IsPublic
	} else {
		out.IsJoinedShared = out.IsShared
		out.IsJoinedPublic = out.IsPublic
	}
	return out
}

// NoteType is the kind of reference notes in nb carry.
func (nb *Notebook) NoteType() NoteType {
	switch {
	case nb.IsBusiness:
		return NoteTypeBusiness
	case nb.Linked != nil:
		return NoteTypeLinked
	}
	return NoteTypePersonal
}

// NoteRef returns a reference to note guid inside nb.
func (nb *Notebook) NoteRef(guid string) *NoteRef {
	ref := &NoteRef{Type: nb.NoteType(), GUID: guid}
	if ref.Type != NoteTypePersonal && nb.Linked != nil {
		l := *nb.Linked
		ref.Linked = &l
	}
	return ref
}
