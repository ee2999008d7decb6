package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/jun/gophnote/internal/edam"
)

func TestNoteRef_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ref  *NoteRef
	}{
		{"personal", &NoteRef{Type: NoteTypePersonal, GUID: "n-1"}},
		{"business", &NoteRef{Type: NoteTypeBusiness, GUID: "n-2"}},
		{"linked", &NoteRef{Type: NoteTypeLinked, GUID: "n-3", Linked: &LinkedNotebookRef{
			GUID:                   "ln-1",
			NoteStoreURL:           "https://example.com/shard/s2/notestore",
			ShardID:                "s2",
			SharedNotebookGlobalID: "share-1",
			WebAPIURLPrefix:        "https://example.com/shard/s2/",
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.ref.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary failed: %v", err)
			}
			got, err := NoteRefFromBytes(b)
			if err != nil {
				t.Fatalf("NoteRefFromBytes failed: %v", err)
			}
			if !got.Equal(tt.ref) {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tt.ref)
			}
		})
	}
}

func TestNoteRefFromBytes_Rejects(t *testing.T) {
	linkedWithout, _ := (&NoteRef{Type: NoteTypeLinked, GUID: "x"}).MarshalBinary()
	badType, _ := (&NoteRef{Type: NoteType(9), GUID: "x"}).MarshalBinary()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a ref")},
		{"linked without notebook", linkedWithout},
		{"unknown type", badType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NoteRefFromBytes(tt.data); !errors.Is(err, ErrBadNoteRef) {
				t.Errorf("Expected ErrBadNoteRef, got %v", err)
			}
		})
	}
}

func TestNoteRef_Equal(t *testing.T) {
	a := &NoteRef{Type: NoteTypeLinked, GUID: "g", Linked: &LinkedNotebookRef{NoteStoreURL: "u", SharedNotebookGlobalID: "s"}}
	b := &NoteRef{Type: NoteTypeLinked, GUID: "g", Linked: &LinkedNotebookRef{NoteStoreURL: "u", SharedNotebookGlobalID: "s"}}
	c := &NoteRef{Type: NoteTypeLinked, GUID: "g", Linked: &LinkedNotebookRef{NoteStoreURL: "u", SharedNotebookGlobalID: "other"}}
	if !a.Equal(b) {
		t.Error("Expected equal refs")
	}
	if a.Equal(c) {
		t.Error("Expected refs in different notebooks to differ")
	}
	if a.Equal(&NoteRef{Type: NoteTypePersonal, GUID: "g"}) {
		t.Error("Expected refs of different type to differ")
	}
}

func TestNote_Validate(t *testing.T) {
	tests := []struct {
		name    string
		note    Note
		wantErr bool
	}{
		{"minimal", Note{Title: "T", Content: "<en-note/>"}, false},
		{"empty title uses default", Note{}, false},
		{"title at limit", Note{Title: strings.Repeat("é", MaxTitleLength)}, false},
		{"title too long", Note{Title: strings.Repeat("a", MaxTitleLength+1)}, true},
		{"leading space", Note{Title: " T"}, true},
		{"trailing newline", Note{Title: "T\n"}, true},
		{"content too large", Note{Title: "T", Content: strings.Repeat("x", MaxContentBytes+1)}, true},
		{"too many tags", Note{Title: "T", TagNames: make([]string, MaxTags+1)}, true},
		{"tag with comma", Note{Title: "T", TagNames: []string{"a,b"}}, true},
		{"resource without mime", Note{Title: "T", Resources: []*Resource{{Data: []byte("x")}}}, true},
		{"resource too large", Note{Title: "T", Resources: []*Resource{{Data: make([]byte, MaxResourceBytes+1), MIMEType: "image/png"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.note.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidNote) {
				t.Errorf("Expected ErrInvalidNote, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestResource_MediaTag(t *testing.T) {
	r := NewResource([]byte("hello"), "image/png", "a.png")
	want := `<en-media type="image/png" hash="5d41402abc4b2a76b9719d911017c592"/>`
	if got := r.MediaTag(); got != want {
		t.Errorf("MediaTag() = %s, want %s", got, want)
	}
}

func TestNote_ToEDAM(t *testing.T) {
	n := &Note{
		Title:      "T",
		Content:    "<en-note>hi</en-note>",
		TagNames:   []string{"a"},
		Resources:  []*Resource{NewResource([]byte("pdf"), "application/pdf", "doc.pdf")},
		IsReminder: true,
	}
	e := n.ToEDAM("nb-1", "gophnote-test")
	if e.NotebookGUID != "nb-1" || e.Title != "T" {
		t.Errorf("unexpected note %+v", e)
	}
	if e.Attributes == nil || e.Attributes.SourceApplication != "gophnote-test" || e.Attributes.ReminderOrder == 0 {
		t.Errorf("unexpected attributes %+v", e.Attributes)
	}
	if len(e.Resources) != 1 || !e.Resources[0].Attachment || e.Resources[0].Data.Size != 3 {
		t.Errorf("unexpected resources %+v", e.Resources)
	}

	back := NoteFromEDAM(e)
	if !back.IsReminder || back.Title != "T" || string(back.Resources[0].Data) != "pdf" {
		t.Errorf("unexpected note %+v", back)
	}
}

func TestNotebookConstructors(t *testing.T) {
	linked := &edam.LinkedNotebook{
		GUID:                   "ln",
		ShareName:              "Shared",
		Username:               "alice",
		NoteStoreURL:           "https://x/shard/s9/notestore",
		SharedNotebookGlobalID: "share",
	}

	personal := NewPersonalNotebook(&edam.Notebook{GUID: "p", Name: "Mine", DefaultNotebook: true}, "me")
	if !personal.AllowsWriting || !personal.IsDefault || personal.NoteType() != NoteTypePersonal {
		t.Errorf("unexpected personal notebook %+v", personal)
	}

	readOnly := NewSharedNotebook(linked, &edam.SharedNotebook{NotebookGUID: "remote", Privilege: edam.PrivilegeReadNotes})
	if readOnly.AllowsWriting || readOnly.GUID != "remote" || readOnly.NoteType() != NoteTypeLinked {
		t.Errorf("unexpected shared notebook %+v", readOnly)
	}
	writable := NewSharedNotebook(linked, &edam.SharedNotebook{NotebookGUID: "remote", Privilege: edam.PrivilegeFullAccess})
	if !writable.AllowsWriting {
		t.Error("Expected full access share to allow writing")
	}

	public := NewPublicNotebook(linked)
	if public.AllowsWriting || !public.IsJoinedPublic {
		t.Errorf("unexpected public notebook %+v", public)
	}

	biz := NewBusinessNotebook(&edam.Notebook{
		GUID:     "b",
		Name:     "Team",
		Business: &edam.BusinessNotebook{Privilege: edam.PrivilegeReadNotes},
		Contact:  &edam.User{ID: 5, Name: "Bob"},
	}, linked, "Acme", 7)
	if biz.AllowsWriting || biz.IsOwnedByUser || biz.OwnerDisplayName != "Bob" || biz.NoteType() != NoteTypeBusiness {
		t.Errorf("unexpected business notebook %+v", biz)
	}

	ref := biz.NoteRef("n")
	if ref.Type != NoteTypeBusiness || ref.Linked == nil || ref.Linked.Key() != "https://x/shard/s9/notestore|share" {
		t.Errorf("unexpected ref %+v", ref)
	}
}
