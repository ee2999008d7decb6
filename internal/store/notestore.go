package store

import (
	"context"

	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/wire"
)

// PageSize is the number of notes requested per findNotesMetadata page.
const PageSize = 100

// NoteStore exposes the note service methods of one store endpoint.
type NoteStore struct {
	*Client
}

// NewNoteStore wraps c.
func NewNoteStore(c *Client) *NoteStore {
	return &NoteStore{Client: c}
}

func (s *NoteStore) GetSyncState(cb Callback[*edam.SyncState]) *Pending {
	return invoke(s.Client, edam.GetSyncState, nil, asStruct(edam.SyncStateFromStruct), cb)
}

func (s *NoteStore) ListNotebooks(cb Callback[[]*edam.Notebook]) *Pending {
	return invoke(s.Client, edam.ListNotebooks, nil, asList(edam.NotebookFromStruct), cb)
}

func (s *NoteStore) GetNotebook(guid string, cb Callback[*edam.Notebook]) *Pending {
	return invoke(s.Client, edam.GetNotebook, wire.Struct{2: guid}, asStruct(edam.NotebookFromStruct), cb)
}

func (s *NoteStore) GetDefaultNotebook(cb Callback[*edam.Notebook]) *Pending {
	return invoke(s.Client, edam.GetDefaultNotebook, nil, asStruct(edam.NotebookFromStruct), cb)
}

func (s *NoteStore) CreateNotebook(nb *edam.Notebook, cb Callback[*edam.Notebook]) *Pending {
	return invoke(s.Client, edam.CreateNotebook, wire.Struct{2: nb.ToStruct()}, asStruct(edam.NotebookFromStruct), cb)
}

func (s *NoteStore) ListLinkedNotebooks(cb Callback[[]*edam.LinkedNotebook]) *Pending {
	return invoke(s.Client, edam.ListLinkedNotebooks, nil, asList(edam.LinkedNotebookFromStruct), cb)
}

func (s *NoteStore) ListTags(cb Callback[[]*edam.Tag]) *Pending {
	return invoke(s.Client, edam.ListTags, nil, asList(edam.TagFromStruct), cb)
}

// FindNotesMetadata fetches one page.
func (s *NoteStore) FindNotesMetadata(filter *edam.NoteFilter, offset, maxNotes int32, spec *edam.NotesMetadataResultSpec, cb Callback[*edam.NotesMetadataList]) *Pending {
	args := wire.Struct{
		2: filter.ToStruct(),
		3: offset,
		4: maxNotes,
		5: spec.ToStruct(),
	}
	return invoke(s.Client, edam.FindNotesMetadata, args, asStruct(edam.NotesMetadataListFromStruct), cb)
}

// FindAllNotesMetadata pages through findNotesMetadata until the server runs
// out of results or maxResults (0 for no limit) is reached. Each page is a
// separate queued call. When a page fails the accumulated results are dropped
// unless allowPartial is set, in which case they are returned with the error.
func (s *NoteStore) FindAllNotesMetadata(filter *edam.NoteFilter, spec *edam.NotesMetadataResultSpec, maxResults int, allowPartial bool, cb Callback[[]*edam.NoteMetadata]) {
	if cb == nil {
		cb = func([]*edam.NoteMetadata, error) {}
	}
	s.findPage(filter, spec, 0, maxResults, allowPartial, nil, cb)
}

func (s *NoteStore) findPage(filter *edam.NoteFilter, spec *edam.NotesMetadataResultSpec, offset int32, maxResults int, allowPartial bool, acc []*edam.NoteMetadata, cb Callback[[]*edam.NoteMetadata]) {
	size := PageSize
	if maxResults > 0 {
		size = min(maxResults-len(acc), PageSize)
	}
	s.FindNotesMetadata(filter, offset, int32(size), spec, func(page *edam.NotesMetadataList, err error) {
		if err != nil {
			if allowPartial {
				cb(acc, err)
			} else {
				cb(nil, err)
			}
			return
		}
		acc = append(acc, page.Notes...)
		next := page.StartIndex + int32(len(page.Notes))
		full := maxResults > 0 && len(acc) >= maxResults
		if len(page.Notes) == 0 || next >= page.TotalNotes || full {
			if full {
				acc = acc[:maxResults]
			}
			cb(acc, nil)
			return
		}
		s.findPage(filter, spec, next, maxResults, allowPartial, acc, cb)
	})
}

// GetNote fetches a note, optionally with content and resource bodies.
func (s *NoteStore) GetNote(guid string, withContent, withResourcesData bool, cb Callback[*edam.Note]) *Pending {
	args := wire.Struct{
		2: guid,
		3: withContent,
		4: withResourcesData,
		5: false,
		6: false,
	}
	return invoke(s.Client, edam.GetNote, args, asStruct(edam.NoteFromStruct), cb)
}

func (s *NoteStore) CreateNote(note *edam.Note, cb Callback[*edam.Note]) *Pending {
	return invoke(s.Client, edam.CreateNote, wire.Struct{2: note.ToStruct()}, asStruct(edam.NoteFromStruct), cb)
}

func (s *NoteStore) UpdateNote(note *edam.Note, cb Callback[*edam.Note]) *Pending {
	return invoke(s.Client, edam.UpdateNote, wire.Struct{2: note.ToStruct()}, asStruct(edam.NoteFromStruct), cb)
}

// DeleteNote moves a note to the trash and returns the new update sequence number.
func (s *NoteStore) DeleteNote(guid string, cb Callback[int32]) *Pending {
	return invoke(s.Client, edam.DeleteNote, wire.Struct{2: guid}, asInt32, cb)
}

// ShareNote returns the note's share key.
func (s *NoteStore) ShareNote(guid string, cb Callback[string]) *Pending {
	return invoke(s.Client, edam.ShareNote, wire.Struct{2: guid}, asString, cb)
}

func (s *NoteStore) AuthenticateToSharedNotebook(globalID string, cb Callback[*edam.AuthenticationResult]) *Pending {
	return invoke(s.Client, edam.AuthenticateToSharedNotebook, wire.Struct{1: globalID}, asStruct(edam.AuthenticationResultFromStruct), cb)
}

// AuthenticateToSharedNotebookSync runs authenticateToSharedNotebook through
// the queue and waits for it.
func (s *NoteStore) AuthenticateToSharedNotebookSync(ctx context.Context, globalID string) (*edam.AuthenticationResult, error) {
	cb, c := Blocking[*edam.AuthenticationResult]()
	s.AuthenticateToSharedNotebook(globalID, cb)
	return Await(ctx, c)
}

func (s *NoteStore) GetSharedNotebookByAuth(cb Callback[*edam.SharedNotebook]) *Pending {
	return invoke(s.Client, edam.GetSharedNotebookByAuth, nil, asStruct(edam.SharedNotebookFromStruct), cb)
}
