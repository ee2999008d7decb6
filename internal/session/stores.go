package session

import (
	"context"
	"fmt"

	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/store"
)

// TargetKind names the store a resource lives in.
type TargetKind int

const (
	TargetPersonal TargetKind = iota
	TargetBusiness
	TargetLinked
)

func (k TargetKind) String() string {
	switch k {
	case TargetPersonal:
		return "personal"
	case TargetBusiness:
		return "business"
	case TargetLinked:
		return "linked"
	}
	return fmt.Sprintf("TargetKind(%d)", int(k))
}

// Target identifies one store. Linked is set for TargetLinked only.
type Target struct {
	Kind   TargetKind
	Linked *model.LinkedNotebookRef
}

func Personal() Target { return Target{Kind: TargetPersonal} }
func Business() Target { return Target{Kind: TargetBusiness} }

func Linked(ref *model.LinkedNotebookRef) Target {
	return Target{Kind: TargetLinked, Linked: ref}
}

func (t Target) String() string {
	if t.Kind == TargetLinked && t.Linked != nil {
		return "linked:" + t.Linked.Key()
	}
	return t.Kind.String()
}

// NoteStore returns the cached store client for target, creating it on first
// use. A linked store is created after one authenticateToSharedNotebook call
// on the linked shard; concurrent first uses share that call.
func (s *Session) NoteStore(ctx context.Context, target Target) (*store.NoteStore, error) {
	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	switch target.Kind {
	case TargetPersonal:
		if s.personal == nil {
			s.personal = store.NewNoteStore(s.newClient(s.cred.NoteStoreURL, s.cred.AuthToken, true))
		}
		ns := s.personal
		s.mu.Unlock()
		return ns, nil

	case TargetBusiness:
		if s.businessCred == nil {
			s.mu.Unlock()
			return nil, ErrNotABusinessMember
		}
		if s.business == nil {
			s.business = store.NewNoteStore(s.newClient(s.businessCred.NoteStoreURL, s.businessCred.AuthToken, false))
		}
		ns := s.business
		s.mu.Unlock()
		return ns, nil

	case TargetLinked:
		if target.Linked == nil || target.Linked.NoteStoreURL == "" {
			s.mu.Unlock()
			return nil, fmt.Errorf("session: linked target without note store url")
		}
		key := target.Linked.Key()
		if ns, ok := s.linked[key]; ok {
			s.mu.Unlock()
			return ns, nil
		}
		token := s.cred.AuthToken
		generation := s.generation
		s.mu.Unlock()

		v, err, _ := s.linkedGroup.Do(key, func() (any, error) {
			return s.openLinked(ctx, target.Linked, token, generation)
		})
		if err != nil {
			return nil, err
		}
		return v.(*store.NoteStore), nil
	}
	s.mu.Unlock()
	return nil, fmt.Errorf("session: unknown target %v", target)
}

func (s *Session) openLinked(ctx context.Context, ref *model.LinkedNotebookRef, token string, generation int) (*store.NoteStore, error) {
	key := ref.Key()
	s.mu.Lock()
	if ns, ok := s.linked[key]; ok && s.generation == generation {
		s.mu.Unlock()
		return ns, nil
	}
	s.mu.Unlock()

	linkedToken := token
	// Public notebooks carry no share id and are read with the user's token.
	if ref.SharedNotebookGlobalID != "" {
		tmp := store.NewNoteStore(s.newClient(ref.NoteStoreURL, token, false))
		res, err := tmp.AuthenticateToSharedNotebookSync(ctx, ref.SharedNotebookGlobalID)
		tmp.Close(ErrNotAuthenticated)
		if err != nil {
			return nil, fmt.Errorf("failed to authenticate to shared notebook: %w", err)
		}
		linkedToken = res.AuthenticationToken
	}

	ns := store.NewNoteStore(s.newClient(ref.NoteStoreURL, linkedToken, false))
	s.mu.Lock()
	if s.generation != generation || s.cred == nil {
		s.mu.Unlock()
		ns.Close(ErrNotAuthenticated)
		return nil, ErrNotAuthenticated
	}
	s.linked[key] = ns
	s.mu.Unlock()
	s.log.Infof("opened linked store %s", key)
	return ns, nil
}
