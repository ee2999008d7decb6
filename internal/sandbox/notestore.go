package sandbox

import (
	"context"
	"crypto/md5"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/wire"
)

const emptyENML = `<?xml version="1.0" encoding="UTF-8"?><!DOCTYPE en-note SYSTEM "http://xml.evernote.com/pub/enml2.dtd"><en-note></en-note>`

type shardKey struct{}

func withShard(ctx context.Context, shard string) context.Context {
	return context.WithValue(ctx, shardKey{}, shard)
}

func shardFrom(ctx context.Context) string {
	s, _ := ctx.Value(shardKey{}).(string)
	return s
}

// endpoint is one sandbox method. serve runs with s.mu held and returns a
// wire value for the success field, or nil for void.
type endpoint struct {
	method   *rpc.Method
	tokenArg int16
	// anyShard lets the token be presented at a store other than its own.
	anyShard bool
	serve    func(ctx context.Context, p *principal, args wire.Struct) (any, error)
}

func (s *Service) register(d *rpc.Dispatcher, e endpoint) {
	if e.tokenArg == 0 {
		e.tokenArg = 1
	}
	d.Handle(e.method, func(ctx context.Context, args wire.Struct) (wire.Struct, error) {
		if err := s.applyFault(ctx, e.method.Name); err != nil {
			return edam.ExceptionResult(e.method, err)
		}

		s.mu.Lock()
		v, err := s.serve(ctx, e, args)
		s.mu.Unlock()

		if err != nil {
			return edam.ExceptionResult(e.method, err)
		}
		if v == nil {
			return wire.Struct{}, nil
		}
		return wire.Struct{0: v}, nil
	})
}

func (s *Service) serve(ctx context.Context, e endpoint, args wire.Struct) (any, error) {
	p, err := s.authenticate(args.Str(e.tokenArg))
	if err != nil {
		return nil, err
	}
	if shard := shardFrom(ctx); shard != "" && !e.anyShard && shard != p.account.shard {
		return nil, &rpc.ApplicationError{Kind: rpc.KindInvalidAuth, Parameter: "authenticationToken"}
	}
	return e.serve(ctx, p, args)
}

func (p *principal) visible(notebookGUID string) bool {
	if p.share != nil {
		return p.share.notebookGUID == notebookGUID
	}
	return p.account.notebook(notebookGUID) != nil
}

func (p *principal) canWrite(notebookGUID string) bool {
	if p.share != nil {
		return p.share.notebookGUID == notebookGUID && p.share.privilege >= edam.PrivilegeModifyNotes
	}
	return p.account.notebook(notebookGUID) != nil
}

func (p *principal) defaultNotebook() *edam.Notebook {
	if p.share != nil {
		return p.account.notebook(p.share.notebookGUID)
	}
	return p.account.defaultNotebook()
}

func (p *principal) note(guid string) (*edam.Note, error) {
	n, ok := p.account.notes[guid]
	if !ok || !p.visible(n.NotebookGUID) {
		return nil, notFound("Note.guid", guid)
	}
	return n, nil
}

func notFound(identifier, key string) error {
	return &rpc.ApplicationError{Kind: rpc.KindNotFound, Parameter: identifier, Message: key}
}

func userError(kind rpc.ErrorKind, parameter string) error {
	return &rpc.ApplicationError{Kind: kind, Parameter: parameter}
}

func (s *Service) noteStoreDispatcher() *rpc.Dispatcher {
	d := rpc.NewDispatcher()

	s.register(d, endpoint{method: edam.GetSyncState, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		st := &edam.SyncState{CurrentTime: s.now().UnixMilli(), UpdateCount: p.account.usn}
		return st.ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.ListNotebooks, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		l := wire.List{}
		for _, nb := range p.account.notebooks {
			if p.visible(nb.GUID) {
				l = append(l, nb.ToStruct())
			}
		}
		return l, nil
	}})

	s.register(d, endpoint{method: edam.GetNotebook, serve: func(_ context.Context, p *principal, args wire.Struct) (any, error) {
		guid := args.Str(2)
		nb := p.account.notebook(guid)
		if nb == nil || !p.visible(guid) {
			return nil, notFound("Notebook.guid", guid)
		}
		return nb.ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.GetDefaultNotebook, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		return p.defaultNotebook().ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.CreateNotebook, serve: func(_ context.Context, p *principal, args wire.Struct) (any, error) {
		if p.share != nil {
			return nil, userError(rpc.KindPermissionDenied, "Notebook")
		}
		in := edam.NotebookFromStruct(args.Sub(2))
		name := in.Name
		if name == "" || strings.TrimSpace(name) != name || utf8.RuneCountInString(name) > 100 {
			return nil, userError(rpc.KindBadDataFormat, "Notebook.name")
		}
		for _, nb := range p.account.notebooks {
			if strings.EqualFold(nb.Name, name) {
				return nil, userError(rpc.KindDataConflict, "Notebook.name")
			}
		}
		nb := s.newNotebook(p.account, name, false)
		nb.Stack = in.Stack
		p.account.notebooks = append(p.account.notebooks, nb)
		return nb.ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.ListLinkedNotebooks, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		l := wire.List{}
		if p.share == nil {
			for _, ln := range p.account.linked {
				l = append(l, ln.ToStruct())
			}
		}
		return l, nil
	}})

	s.register(d, endpoint{method: edam.FindNotesMetadata, serve: func(_ context.Context, p *principal, args wire.Struct) (any, error) {
		return s.findNotesMetadata(p, args)
	}})

	s.register(d, endpoint{method: edam.GetNote, serve: func(_ context.Context, p *principal, args wire.Struct) (any, error) {
		n, err := p.note(args.Str(2))
		if err != nil {
			return nil, err
		}
		return copyNote(n, args.Bool(3), args.Bool(4)).ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.CreateNote, serve: func(_ context.Context, p *principal, args wire.Struct) (any, error) {
		in := edam.NoteFromStruct(args.Sub(2))
		if in.NotebookGUID == "" {
			in.NotebookGUID = p.defaultNotebook().GUID
		}
		if !p.visible(in.NotebookGUID) {
			return nil, notFound("Note.notebookGuid", in.NotebookGUID)
		}
		if !p.canWrite(in.NotebookGUID) {
			return nil, userError(rpc.KindPermissionDenied, "Note")
		}
		in.GUID = ""
		n, err := s.storeNote(p.account, in)
		if err != nil {
			return nil, err
		}
		return copyNote(n, false, false).ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.UpdateNote, serve: func(_ context.Context, p *principal, args wire.Struct) (any, error) {
		in := edam.NoteFromStruct(args.Sub(2))
		old, err := p.note(in.GUID)
		if err != nil {
			return nil, err
		}
		if in.NotebookGUID == "" {
			in.NotebookGUID = old.NotebookGUID
		}
		if !p.canWrite(old.NotebookGUID) || !p.canWrite(in.NotebookGUID) {
			return nil, userError(rpc.KindPermissionDenied, "Note")
		}
		in.Created = old.Created
		n, err := s.storeNote(p.account, in)
		if err != nil {
			return nil, err
		}
		return copyNote(n, false, false).ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.DeleteNote, serve: func(_ context.Context, p *principal, args wire.Struct) (any, error) {
		n, err := p.note(args.Str(2))
		if err != nil {
			return nil, err
		}
		if !p.canWrite(n.NotebookGUID) {
			return nil, userError(rpc.KindPermissionDenied, "Note")
		}
		if !n.Active {
			return nil, userError(rpc.KindDataConflict, "Note.active")
		}
		n.Active = false
		n.Deleted = s.now().UnixMilli()
		n.UpdateSequenceNum = p.account.nextUSN()
		return n.UpdateSequenceNum, nil
	}})

	s.register(d, endpoint{method: edam.ShareNote, serve: func(_ context.Context, p *principal, args wire.Struct) (any, error) {
		n, err := p.note(args.Str(2))
		if err != nil {
			return nil, err
		}
		if p.share != nil && p.share.privilege < edam.PrivilegeFullAccess {
			return nil, userError(rpc.KindPermissionDenied, "Note")
		}
		key, ok := s.shareKeys[n.GUID]
		if !ok {
			key = strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
			s.shareKeys[n.GUID] = key
		}
		return key, nil
	}})

	s.register(d, endpoint{method: edam.AuthenticateToSharedNotebook, tokenArg: 2, anyShard: true, serve: func(ctx context.Context, p *principal, args wire.Struct) (any, error) {
		id := args.Str(1)
		sh, ok := s.shares[id]
		if !ok {
			return nil, notFound("SharedNotebook.id", id)
		}
		if shard := shardFrom(ctx); shard != "" && shard != sh.owner.shard {
			return nil, notFound("SharedNotebook.id", id)
		}
		if p.share != nil || sh.recipient != p.account {
			return nil, userError(rpc.KindPermissionDenied, "SharedNotebook.id")
		}
		token := s.issueToken()
		expires := s.now().Add(tokenLifetime)
		s.tokens[token] = &principal{account: sh.owner, share: sh, expires: expires}
		res := &edam.AuthenticationResult{
			CurrentTime:         s.now().UnixMilli(),
			AuthenticationToken: token,
			Expiration:          expires.UnixMilli(),
			NoteStoreURL:        s.noteStoreURL(sh.owner.shard),
			WebAPIURLPrefix:     s.webAPIURLPrefix(sh.owner.shard),
		}
		return res.ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.GetSharedNotebookByAuth, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		if p.share == nil {
			return nil, userError(rpc.KindPermissionDenied, "authenticationToken")
		}
		return p.share.record().ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.ListTags, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		l := wire.List{}
		for _, t := range p.account.tags {
			l = append(l, t.ToStruct())
		}
		return l, nil
	}})

	return d
}

// storeNote validates in and saves it as a new note, or over the note with
// the same guid. Called with s.mu held.
func (s *Service) storeNote(a *Account, in *edam.Note) (*edam.Note, error) {
	title := in.Title
	if l := utf8.RuneCountInString(title); l < 1 || l > 255 || strings.TrimSpace(title) != title {
		return nil, userError(rpc.KindBadDataFormat, "Note.title")
	}
	if in.Content == "" {
		in.Content = emptyENML
	}
	if len(in.Content) > 5*1024*1024 {
		return nil, userError(rpc.KindLenTooLong, "Note.content")
	}
	if !strings.Contains(in.Content, "<en-note") {
		return nil, userError(rpc.KindENMLValidation, "Note.content")
	}
	if a.notebook(in.NotebookGUID) == nil {
		return nil, notFound("Note.notebookGuid", in.NotebookGUID)
	}
	if len(in.TagNames)+len(in.TagGUIDs) > 100 {
		return nil, userError(rpc.KindLimitReached, "Note.tagGuids")
	}

	now := s.now().UnixMilli()
	if in.GUID == "" {
		if active := countActive(a); active >= s.MaxNotes {
			return nil, userError(rpc.KindLimitReached, "Note")
		}
		in.GUID = uuid.NewString()
	}
	if in.Created == 0 {
		in.Created = now
	}
	in.Updated = now
	in.Active = true
	in.Deleted = 0
	in.UpdateSequenceNum = a.nextUSN()
	hash := md5.Sum([]byte(in.Content))
	in.ContentHash = hash[:]
	in.ContentLength = int32(len(in.Content))

	for _, name := range in.TagNames {
		in.TagGUIDs = appendUnique(in.TagGUIDs, s.tagGUID(a, name))
	}
	in.TagNames = nil

	for _, r := range in.Resources {
		if r.Data == nil || len(r.Data.Body) > 25*1024*1024 {
			return nil, userError(rpc.KindBadDataFormat, "Resource.data")
		}
		if r.GUID == "" {
			r.GUID = uuid.NewString()
		}
		r.NoteGUID = in.GUID
		sum := md5.Sum(r.Data.Body)
		r.Data.BodyHash = sum[:]
		r.Data.Size = int32(len(r.Data.Body))
	}

	a.notes[in.GUID] = in
	return in, nil
}

func (s *Service) tagGUID(a *Account, name string) string {
	for _, t := range a.tags {
		if strings.EqualFold(t.Name, name) {
			return t.GUID
		}
	}
	t := &edam.Tag{GUID: uuid.NewString(), Name: name, UpdateSequenceNum: a.nextUSN()}
	a.tags = append(a.tags, t)
	return t.GUID
}

func appendUnique(ss []string, v string) []string {
	for _, x := range ss {
		if x == v {
			return ss
		}
	}
	return append(ss, v)
}

func countActive(a *Account) int {
	n := 0
	for _, note := range a.notes {
		if note.Active {
			n++
		}
	}
	return n
}

func (s *Service) findNotesMetadata(p *principal, args wire.Struct) (any, error) {
	filter := edam.NoteFilterFromStruct(args.Sub(2))
	offset, max := args.I32(3), args.I32(4)
	spec := edam.NotesMetadataResultSpecFromStruct(args.Sub(5))
	if offset < 0 {
		return nil, userError(rpc.KindBadDataFormat, "offset")
	}
	if max < 1 {
		return nil, userError(rpc.KindBadDataFormat, "maxNotes")
	}
	if max > maxPageSize {
		max = maxPageSize
	}
	if filter.NotebookGUID != "" && !p.visible(filter.NotebookGUID) {
		return nil, notFound("NoteFilter.notebookGuid", filter.NotebookGUID)
	}

	var hits []*edam.Note
	for _, n := range p.account.notes {
		if n.Active == filter.Inactive || !p.visible(n.NotebookGUID) {
			continue
		}
		if filter.NotebookGUID != "" && n.NotebookGUID != filter.NotebookGUID {
			continue
		}
		if !s.matches(p.account, n, filter.Words) {
			continue
		}
		hits = append(hits, n)
	}
	sortNotes(hits, filter.Order, filter.Ascending)

	list := &edam.NotesMetadataList{StartIndex: offset, TotalNotes: int32(len(hits)), UpdateCount: p.account.usn}
	for i := int(offset); i < len(hits) && i < int(offset)+int(max); i++ {
		list.Notes = append(list.Notes, metadata(hits[i], spec))
	}
	return list.ToStruct(), nil
}

// matches applies a whitespace separated query. Terms are ANDed; a term is a
// substring of the title or content, or one of the prefixes
// sourceApplication:, tag: and intitle:.
func (s *Service) matches(a *Account, n *edam.Note, words string) bool {
	for _, term := range strings.Fields(words) {
		term = strings.Trim(strings.ToLower(term), `"`)
		switch {
		case term == "*":
		case strings.HasPrefix(term, "sourceapplication:"):
			want := strings.Trim(strings.TrimPrefix(term, "sourceapplication:"), `"`)
			if n.Attributes == nil || strings.ToLower(n.Attributes.SourceApplication) != want {
				return false
			}
		case strings.HasPrefix(term, "tag:"):
			if !hasTag(a, n, strings.TrimPrefix(term, "tag:")) {
				return false
			}
		case strings.HasPrefix(term, "intitle:"):
			if !strings.Contains(strings.ToLower(n.Title), strings.TrimPrefix(term, "intitle:")) {
				return false
			}
		default:
			if !strings.Contains(strings.ToLower(n.Title), term) && !strings.Contains(strings.ToLower(n.Content), term) {
				return false
			}
		}
	}
	return true
}

func hasTag(a *Account, n *edam.Note, name string) bool {
	for _, guid := range n.TagGUIDs {
		for _, t := range a.tags {
			if t.GUID == guid && strings.ToLower(t.Name) == name {
				return true
			}
		}
	}
	return false
}

func sortNotes(notes []*edam.Note, order int32, ascending bool) {
	less := func(a, b *edam.Note) bool {
		switch order {
		case edam.NoteSortCreated:
			if a.Created != b.Created {
				return a.Created < b.Created
			}
		case edam.NoteSortTitle:
			ta, tb := strings.ToLower(a.Title), strings.ToLower(b.Title)
			if ta != tb {
				return ta < tb
			}
		default:
			if a.Updated != b.Updated {
				return a.Updated < b.Updated
			}
		}
		return a.GUID < b.GUID
	}
	sort.Slice(notes, func(i, j int) bool {
		if ascending {
			return less(notes[i], notes[j])
		}
		return less(notes[j], notes[i])
	})
}

func metadata(n *edam.Note, spec *edam.NotesMetadataResultSpec) *edam.NoteMetadata {
	m := &edam.NoteMetadata{GUID: n.GUID}
	if spec.IncludeTitle {
		m.Title = n.Title
	}
	if spec.IncludeContentLength {
		m.ContentLength = n.ContentLength
	}
	if spec.IncludeCreated {
		m.Created = n.Created
	}
	if spec.IncludeUpdated {
		m.Updated = n.Updated
		m.Deleted = n.Deleted
	}
	if spec.IncludeUpdateSequenceNum {
		m.UpdateSequenceNum = n.UpdateSequenceNum
	}
	if spec.IncludeNotebookGUID {
		m.NotebookGUID = n.NotebookGUID
	}
	if spec.IncludeTagGUIDs {
		m.TagGUIDs = append([]string(nil), n.TagGUIDs...)
	}
	if spec.IncludeAttributes && n.Attributes != nil {
		a := *n.Attributes
		m.Attributes = &a
	}
	return m
}
