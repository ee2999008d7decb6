// Package model holds the SDK-level value types handed to callers: note
// references, notebooks, notes and their resources.
package model

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jun/gophnote/internal/edam"
)

// Service limits checked before any upload.
const (
	MaxTitleLength    = 255
	MaxContentBytes   = 5 * 1024 * 1024
	MaxTags           = 100
	MaxResourceBytes  = 25 * 1024 * 1024
	MaxTagNameLength  = 100
	DefaultNoteTitle  = "Untitled note"
	reminderOrderBase = 1
)

// ErrInvalidNote wraps every note validation failure.
var ErrInvalidNote = errors.New("invalid note")

// Resource is a file attached to a note.
type Resource struct {
	Data     []byte
	MIMEType string
	Filename string
}

// NewResource returns a resource over data.
func NewResource(data []byte, mimeType, filename string) *Resource {
	return &Resource{Data: data, MIMEType: mimeType, Filename: filename}
}

// BodyHash is the MD5 of Data, which the service uses to reference the
// resource from note content.
func (r *Resource) BodyHash() []byte {
	sum := md5.Sum(r.Data)
	return sum[:]
}

// MediaTag returns the en-media element that embeds r in note content.
func (r *Resource) MediaTag() string {
	return fmt.Sprintf(`<en-media type=%q hash="%s"/>`, r.MIMEType, hex.EncodeToString(r.BodyHash()))
}

func (r *Resource) toEDAM() *edam.Resource {
	return &edam.Resource{
		Data: &edam.Data{
			BodyHash: r.BodyHash(),
			Size:     int32(len(r.Data)),
			Body:     r.Data,
		},
		Mime:       r.MIMEType,
		FileName:   r.Filename,
		Attachment: r.Filename != "" && !strings.HasPrefix(r.MIMEType, "image/"),
	}
}

// Note is a note as written by or returned to the caller. Content is ENML.
type Note struct {
	Title      string
	Content    string
	TagNames   []string
	Resources  []*Resource
	IsReminder bool

	// Set on downloaded notes.
	Created time.Time
	Updated time.Time
}

// Validate checks n against the service limits.
func (n *Note) Validate() error {
	title := n.Title
	if title == "" {
		title = DefaultNoteTitle
	}
	if l := utf8.RuneCountInString(title); l > MaxTitleLength {
		return fmt.Errorf("%w: title is %d characters, limit is %d", ErrInvalidNote, l, MaxTitleLength)
	}
	if strings.TrimSpace(title) != title {
		return fmt.Errorf("%w: title has leading or trailing whitespace", ErrInvalidNote)
	}
	if len(n.Content) > MaxContentBytes {
		return fmt.Errorf("%w: content is %d bytes, limit is %d", ErrInvalidNote, len(n.Content), MaxContentBytes)
	}
	if len(n.TagNames) > MaxTags {
		return fmt.Errorf("%w: %d tags, limit is %d", ErrInvalidNote, len(n.TagNames), MaxTags)
	}
	for _, tag := range n.TagNames {
		if tag == "" || utf8.RuneCountInString(tag) > MaxTagNameLength || strings.Contains(tag, ",") {
			return fmt.Errorf("%w: bad tag name %q", ErrInvalidNote, tag)
		}
	}
	for i, r := range n.Resources {
		if len(r.Data) > MaxResourceBytes {
			return fmt.Errorf("%w: resource %d is %d bytes, limit is %d", ErrInvalidNote, i, len(r.Data), MaxResourceBytes)
		}
		if r.MIMEType == "" {
			return fmt.Errorf("%w: resource %d has no mime type", ErrInvalidNote, i)
		}
	}
	return nil
}

// ToEDAM converts n into the service record. sourceApplication is recorded
// in the note attributes when set.
func (n *Note) ToEDAM(notebookGUID, sourceApplication string) *edam.Note {
	title := n.Title
	if title == "" {
		title = DefaultNoteTitle
	}
	out := &edam.Note{
		Title:        title,
		Content:      n.Content,
		NotebookGUID: notebookGUID,
		TagNames:     n.TagNames,
	}
	for _, r := range n.Resources {
		out.Resources = append(out.Resources, r.toEDAM())
	}
	if sourceApplication != "" || n.IsReminder {
		out.Attributes = &edam.NoteAttributes{SourceApplication: sourceApplication}
		if n.IsReminder {
			out.Attributes.ReminderOrder = time.Now().UnixMilli()
		}
	}
	return out
}

// NoteFromEDAM converts a downloaded note. Tag names are taken from the
// record; callers resolve tag guids when they need names.
func NoteFromEDAM(n *edam.Note) *Note {
	out := &Note{
		Title:    n.Title,
		Content:  n.Content,
		TagNames: n.TagNames,
		Created:  fromMillis(n.Created),
		Updated:  fromMillis(n.Updated),
	}
	if a := n.Attributes; a != nil && a.ReminderOrder >= reminderOrderBase {
		out.IsReminder = true
	}
	for _, r := range n.Resources {
		res := &Resource{MIMEType: r.Mime, Filename: r.FileName}
		if r.Data != nil {
			res.Data = r.Data.Body
		}
		out.Resources = append(out.Resources, res)
	}
	return out
}

// FindNotesResult is one hit of a note search.
type FindNotesResult struct {
	NoteRef  *NoteRef
	Notebook *Notebook
	Title    string
	Created  time.Time
	Updated  time.Time
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
