package model

import (
	"errors"
	"fmt"

	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/wire"
)

// NoteType says which store holds a note.
type NoteType int32

const (
	NoteTypePersonal NoteType = 1
	NoteTypeBusiness NoteType = 2
	NoteTypeLinked   NoteType = 3
)

func (t NoteType) String() string {
	switch t {
	case NoteTypePersonal:
		return "personal"
	case NoteTypeBusiness:
		return "business"
	case NoteTypeLinked:
		return "linked"
	}
	return fmt.Sprintf("NoteType(%d)", int32(t))
}

const noteRefVersion int32 = 1

// ErrBadNoteRef is returned by NoteRefFromBytes for bytes that do not hold a
// note reference.
var ErrBadNoteRef = errors.New("model: malformed note reference")

// LinkedNotebookRef points at a notebook shared from another account.
type LinkedNotebookRef struct {
	GUID                   string
	NoteStoreURL           string
	ShardID                string
	SharedNotebookGlobalID string
	WebAPIURLPrefix        string
}

// LinkedNotebookRefFrom copies the routing fields of l.
func LinkedNotebookRefFrom(l *edam.LinkedNotebook) *LinkedNotebookRef {
	if l == nil {
		return nil
	}
	return &LinkedNotebookRef{
		GUID:                   l.GUID,
		NoteStoreURL:           l.NoteStoreURL,
		ShardID:                l.ShardID,
		SharedNotebookGlobalID: l.SharedNotebookGlobalID,
		WebAPIURLPrefix:        l.WebAPIURLPrefix,
	}
}

// Key identifies the store serving this notebook.
func (r *LinkedNotebookRef) Key() string {
	return r.NoteStoreURL + "|" + r.SharedNotebookGlobalID
}

// NoteRef is an opaque, persistable handle on a note.
type NoteRef struct {
	Type   NoteType
	GUID   string
	Linked *LinkedNotebookRef
}

var linkedRefSchema = &wire.StructSchema{
	Name: "LinkedNotebookRef",
	Fields: []wire.Field{
		{ID: 1, Name: "guid", Type: wire.String, Optional: true},
		{ID: 2, Name: "noteStoreUrl", Type: wire.String},
		{ID: 3, Name: "shardId", Type: wire.String, Optional: true},
		{ID: 4, Name: "sharedNotebookGlobalId", Type: wire.String, Optional: true},
		{ID: 5, Name: "webApiUrlPrefix", Type: wire.String, Optional: true},
	},
}

var noteRefSchema = &wire.StructSchema{
	Name: "NoteRef",
	Fields: []wire.Field{
		{ID: 1, Name: "version", Type: wire.Int32},
		{ID: 2, Name: "type", Type: wire.Int32},
		{ID: 3, Name: "guid", Type: wire.String},
		{ID: 4, Name: "linkedNotebook", Type: wire.StructOf(linkedRefSchema), Optional: true},
	},
}

// MarshalBinary encodes r so it can be stored and later resolved again.
func (r *NoteRef) MarshalBinary() ([]byte, error) {
	s := wire.Struct{1: noteRefVersion, 2: int32(r.Type), 3: r.GUID}
	if l := r.Linked; l != nil {
		ls := wire.Struct{2: l.NoteStoreURL}
		ls.SetIf(1, l.GUID)
		ls.SetIf(3, l.ShardID)
		ls.SetIf(4, l.SharedNotebookGlobalID)
		ls.SetIf(5, l.WebAPIURLPrefix)
		s[4] = ls
	}
	return wire.Marshal(s, noteRefSchema)
}

// NoteRefFromBytes decodes bytes produced by MarshalBinary.
func NoteRefFromBytes(b []byte) (*NoteRef, error) {
	s, err := wire.Unmarshal(b, noteRefSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadNoteRef, err)
	}
	if v := s.I32(1); v != noteRefVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadNoteRef, v)
	}
	r := &NoteRef{Type: NoteType(s.I32(2)), GUID: s.Str(3)}
	switch r.Type {
	case NoteTypePersonal, NoteTypeBusiness, NoteTypeLinked:
	default:
		return nil, fmt.Errorf("%w: type %d", ErrBadNoteRef, int32(r.Type))
	}
	if ls := s.Sub(4); ls != nil {
		r.Linked = &LinkedNotebookRef{
			GUID:                   ls.Str(1),
			NoteStoreURL:           ls.Str(2),
			ShardID:                ls.Str(3),
			SharedNotebookGlobalID: ls.Str(4),
			WebAPIURLPrefix:        ls.Str(5),
		}
	}
	if r.Type == NoteTypeLinked && r.Linked == nil {
		return nil, fmt.Errorf("%w: linked note without notebook", ErrBadNoteRef)
	}
	return r, nil
}

// Equal reports whether r and o name the same note in the same store.
func (r *NoteRef) Equal(o *NoteRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Type != o.Type || r.GUID != o.GUID {
		return false
	}
	if r.Linked == nil || o.Linked == nil {
		return r.Linked == o.Linked
	}
	return *r.Linked == *o.Linked
}
