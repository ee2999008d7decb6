package notes

import (
	"context"
	"fmt"

	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/store"
)

// UploadPolicy decides between creating and replacing a note.
type UploadPolicy int

const (
	// Create always creates a new note.
	Create UploadPolicy = iota
	// Replace updates an existing note and fails if it is gone.
	Replace
	// ReplaceOrCreate updates an existing note, or creates a new one in the
	// same store when it no longer exists.
	ReplaceOrCreate
)

func (p UploadPolicy) String() string {
	switch p {
	case Create:
		return "create"
	case Replace:
		return "replace"
	case ReplaceOrCreate:
		return "replace-or-create"
	}
	return fmt.Sprintf("UploadPolicy(%d)", int(p))
}

// UploadNote creates or replaces note. notebook selects where a new note goes
// and may be nil for the default notebook; it cannot be combined with a
// replace policy. The note is checked against the service limits before
// anything is sent.
func (s *Service) UploadNote(ctx context.Context, note *model.Note, policy UploadPolicy, notebook *model.Notebook, replace *model.NoteRef, cb store.Callback[*model.NoteRef]) {
	async(cb, func() (*model.NoteRef, error) {
		return s.uploadNote(ctx, note, policy, notebook, replace)
	})
}

func (s *Service) uploadNote(ctx context.Context, note *model.Note, policy UploadPolicy, notebook *model.Notebook, replace *model.NoteRef) (*model.NoteRef, error) {
	if err := note.Validate(); err != nil {
		return nil, err
	}
	if policy != Create {
		if replace == nil {
			return nil, ErrReplaceTargetRequired
		}
		if notebook != nil {
			return nil, ErrNotebookWithReplace
		}
		return s.replaceNote(ctx, note, policy, replace)
	}
	if notebook != nil && !notebook.AllowsWriting {
		return nil, ErrReadOnlyNotebook
	}
	if notebook == nil && s.session.AppNotebookIsLinked() {
		nb, err := s.appNotebook(ctx)
		if err != nil {
			return nil, err
		}
		notebook = nb
	}

	ns, err := s.router.NoteStoreForNotebook(ctx, notebook)
	if err != nil {
		return nil, err
	}
	guid := ""
	if notebook != nil {
		guid = notebook.GUID
	}
	created, err := call(ctx, func(cb store.Callback[*edam.Note]) *store.Pending {
		return ns.CreateNote(note.ToEDAM(guid, s.sourceApp), cb)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	if notebook == nil {
		return &model.NoteRef{Type: model.NoteTypePersonal, GUID: created.GUID}, nil
	}
	return notebook.NoteRef(created.GUID), nil
}

func (s *Service) replaceNote(ctx context.Context, note *model.Note, policy UploadPolicy, ref *model.NoteRef) (*model.NoteRef, error) {
	ns, err := s.router.NoteStoreForNote(ctx, ref)
	if err != nil {
		return nil, err
	}
	update := note.ToEDAM("", s.sourceApp)
	update.GUID = ref.GUID
	_, err = call(ctx, func(cb store.Callback[*edam.Note]) *store.Pending {
		return ns.UpdateNote(update, cb)
	})
	if err == nil {
		return ref, nil
	}
	if policy != ReplaceOrCreate || rpc.KindOf(err) != rpc.KindNotFound {
		return nil, fmt.Errorf("failed to replace note: %w", err)
	}

	s.log.Infof("note %s is gone, creating a new one", ref.GUID)
	created, err := call(ctx, func(cb store.Callback[*edam.Note]) *store.Pending {
		return ns.CreateNote(note.ToEDAM("", s.sourceApp), cb)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	out := *ref
	out.GUID = created.GUID
	return &out, nil
}

// ShareNote turns on sharing for ref and returns its public URL.
func (s *Service) ShareNote(ctx context.Context, ref *model.NoteRef, cb store.Callback[string]) {
	async(cb, func() (string, error) {
		ns, err := s.router.NoteStoreForNote(ctx, ref)
		if err != nil {
			return "", err
		}
		prefix := s.webAPIURLPrefix(ref)
		if prefix == "" {
			return "", ErrNoShareURL
		}
		key, err := call(ctx, func(cb store.Callback[string]) *store.Pending {
			return ns.ShareNote(ref.GUID, cb)
		})
		if err != nil {
			return "", fmt.Errorf("failed to share note: %w", err)
		}
		return prefix + "sh/" + ref.GUID + "/" + key, nil
	})
}

func (s *Service) webAPIURLPrefix(ref *model.NoteRef) string {
	switch ref.Type {
	case model.NoteTypeBusiness:
		if c := s.session.BusinessCredential(); c != nil {
			return c.WebAPIURLPrefix
		}
	case model.NoteTypeLinked:
		if ref.Linked != nil {
			return ref.Linked.WebAPIURLPrefix
		}
	default:
		if c := s.session.Credential(); c != nil {
			return c.WebAPIURLPrefix
		}
	}
	return ""
}

// DeleteNote moves ref to the trash.
func (s *Service) DeleteNote(ctx context.Context, ref *model.NoteRef, cb func(error)) {
	go func() {
		ns, err := s.router.NoteStoreForNote(ctx, ref)
		if err == nil {
			_, err = call(ctx, func(cb store.Callback[int32]) *store.Pending {
				return ns.DeleteNote(ref.GUID, cb)
			})
		}
		if cb != nil {
			cb(err)
		}
	}()
}

// DownloadNote fetches the full note with resource data and tag names.
func (s *Service) DownloadNote(ctx context.Context, ref *model.NoteRef, cb store.Callback[*model.Note]) {
	async(cb, func() (*model.Note, error) {
		ns, err := s.router.NoteStoreForNote(ctx, ref)
		if err != nil {
			return nil, err
		}
		n, err := call(ctx, func(cb store.Callback[*edam.Note]) *store.Pending {
			return ns.GetNote(ref.GUID, true, true, cb)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to download note: %w", err)
		}
		out := model.NoteFromEDAM(n)
		if len(out.TagNames) == 0 && len(n.TagGUIDs) > 0 {
			tags, err := call(ctx, ns.ListTags)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve tags: %w", err)
			}
			names := make(map[string]string, len(tags))
			for _, t := range tags {
				names[t.GUID] = t.Name
			}
			for _, guid := range n.TagGUIDs {
				if name, ok := names[guid]; ok {
					out.TagNames = append(out.TagNames, name)
				}
			}
		}
		return out, nil
	})
}
