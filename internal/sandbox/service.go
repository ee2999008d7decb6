// Package sandbox is an in-memory note service. It decodes real wire
// requests and writes real wire replies, so clients can be exercised end to
// end without the hosted service.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/rpc"
)

const (
	DefaultMaxNotes = 100000
	tokenLifetime   = 365 * 24 * time.Hour
	maxPageSize     = 250
)

// Account is one user, or the owner account of a business.
type Account struct {
	svc *Service

	token     string
	shard     string
	user      *edam.User
	notebooks []*edam.Notebook
	notes     map[string]*edam.Note
	tags      []*edam.Tag
	linked    []*edam.LinkedNotebook
	usn       int32
	business  *Account
	isBiz     bool
}

// Token returns the account's primary authentication token.
func (a *Account) Token() string { return a.token }

// ID returns the user id.
func (a *Account) ID() int32 { return a.user.ID }

func (a *Account) Shard() string { return a.shard }

func (a *Account) NoteStoreURL() string {
	a.svc.mu.Lock()
	defer a.svc.mu.Unlock()
	return a.svc.noteStoreURL(a.shard)
}

func (a *Account) WebAPIURLPrefix() string {
	a.svc.mu.Lock()
	defer a.svc.mu.Unlock()
	return a.svc.webAPIURLPrefix(a.shard)
}

// DefaultNotebookGUID returns the guid of the account's default notebook.
func (a *Account) DefaultNotebookGUID() string {
	a.svc.mu.Lock()
	defer a.svc.mu.Unlock()
	return a.defaultNotebook().GUID
}

func (a *Account) defaultNotebook() *edam.Notebook {
	for _, nb := range a.notebooks {
		if nb.DefaultNotebook {
			return nb
		}
	}
	return a.notebooks[0]
}

func (a *Account) notebook(guid string) *edam.Notebook {
	for _, nb := range a.notebooks {
		if nb.GUID == guid {
			return nb
		}
	}
	return nil
}

func (a *Account) nextUSN() int32 {
	a.usn++
	return a.usn
}

type share struct {
	globalID     string
	owner        *Account
	notebookGUID string
	privilege    int32
	recipient    *Account
	created      int64
}

// principal is what an authentication token grants.
type principal struct {
	account *Account
	share   *share
	expires time.Time
}

// Fault is injected into every call of one method until Times calls have
// been affected. Times zero means every call.
type Fault struct {
	Err   error
	Delay time.Duration
	Times int
}

// Service holds all sandbox state.
type Service struct {
	MaxNotes int

	log      logging.Logger
	now      func() time.Time
	noteDisp *rpc.Dispatcher
	userDisp *rpc.Dispatcher

	mu         sync.Mutex
	baseURL    string
	accounts   map[string]*Account
	businesses map[string]*Account
	tokens     map[string]*principal
	shares     map[string]*share
	shareKeys  map[string]string
	codes      map[string]*Account
	faults     map[string]*Fault
	calls      map[string]int
	nextUserID int32
	nextShard  int
}

// New returns an empty Service.
func New(log logging.Logger) *Service {
	s := &Service{
		MaxNotes:   DefaultMaxNotes,
		log:        logging.OrDefault(log),
		now:        time.Now,
		baseURL:    "http://localhost:8080",
		accounts:   make(map[string]*Account),
		businesses: make(map[string]*Account),
		tokens:     make(map[string]*principal),
		shares:     make(map[string]*share),
		shareKeys:  make(map[string]string),
		codes:      make(map[string]*Account),
		faults:     make(map[string]*Fault),
		calls:      make(map[string]int),
		nextUserID: 1,
		nextShard:  1,
	}
	s.noteDisp = s.noteStoreDispatcher()
	s.userDisp = s.userStoreDispatcher()
	return s
}

// SetBaseURL sets the externally visible root used in returned store URLs.
func (s *Service) SetBaseURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimSuffix(u, "/")
}

func (s *Service) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// UserStoreURL is the user store endpoint.
func (s *Service) UserStoreURL() string {
	return s.BaseURL() + "/edam/user"
}

func (s *Service) noteStoreURL(shard string) string {
	return fmt.Sprintf("%s/shard/%s/notestore", s.baseURL, shard)
}

func (s *Service) webAPIURLPrefix(shard string) string {
	return fmt.Sprintf("%s/shard/%s/", s.baseURL, shard)
}

func (s *Service) newAccount(username string) *Account {
	now := s.now().UnixMilli()
	a := &Account{
		svc:   s,
		token: s.issueToken(),
		shard: fmt.Sprintf("s%d", s.nextShard),
		user: &edam.User{
			ID:        s.nextUserID,
			Username:  username,
			Name:      username,
			Email:     username + "@example.com",
			Privilege: 1,
			Created:   now,
			Updated:   now,
			Active:    true,
			Accounting: &edam.Accounting{
				UploadLimit: 60 * 1024 * 1024,
			},
		},
		notes: make(map[string]*edam.Note),
	}
	s.nextShard++
	s.nextUserID++
	a.user.ShardID = a.shard
	s.tokens[a.token] = &principal{account: a, expires: s.now().Add(tokenLifetime)}
	return a
}

// AddUser creates an account with a default notebook.
func (s *Service) AddUser(username string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.newAccount(username)
	a.notebooks = append(a.notebooks, s.newNotebook(a, username+"'s notebook", true))
	s.accounts[a.token] = a
	return a
}

// JoinBusiness makes a a member of the named business, creating the business
// and its default notebook on first use.
func (s *Service) JoinBusiness(a *Account, name string) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	biz, ok := s.businesses[name]
	if !ok {
		biz = s.newAccount(name)
		biz.isBiz = true
		biz.notebooks = append(biz.notebooks, s.newNotebook(biz, name+" notebook", true))
		s.businesses[name] = biz
	}
	a.business = biz
	a.user.BusinessUserInfo = &edam.BusinessUserInfo{
		BusinessID:   biz.user.ID,
		BusinessName: name,
		Role:         1,
		Email:        a.user.Email,
	}
	return biz
}

// AddNotebook creates a notebook in a.
func (s *Service) AddNotebook(a *Account, name string) *edam.Notebook {
	s.mu.Lock()
	defer s.mu.Unlock()
	nb := s.newNotebook(a, name, false)
	a.notebooks = append(a.notebooks, nb)
	return copyNotebook(nb)
}

func (s *Service) newNotebook(a *Account, name string, isDefault bool) *edam.Notebook {
	now := s.now().UnixMilli()
	nb := &edam.Notebook{
		GUID:              uuid.NewString(),
		Name:              name,
		UpdateSequenceNum: a.nextUSN(),
		DefaultNotebook:   isDefault,
		ServiceCreated:    now,
		ServiceUpdated:    now,
	}
	if a.isBiz {
		nb.Business = &edam.BusinessNotebook{Privilege: edam.PrivilegeFullAccess}
		nb.Contact = &edam.User{ID: a.user.ID, Username: a.user.Username, Name: a.user.Name}
	}
	return nb
}

// AddNote stores a note with plain ENML content in notebookGUID, or in the
// default notebook when notebookGUID is empty.
func (s *Service) AddNote(a *Account, notebookGUID, title, content string) *edam.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notebookGUID == "" {
		notebookGUID = a.defaultNotebook().GUID
	}
	n, err := s.storeNote(a, &edam.Note{Title: title, Content: content, NotebookGUID: notebookGUID})
	if err != nil {
		panic(fmt.Sprintf("sandbox: AddNote: %v", err))
	}
	return copyNote(n, true, true)
}

// ShareNotebook shares owner's notebook with recipient and adds the linked
// notebook record to recipient's account.
func (s *Service) ShareNotebook(owner *Account, notebookGUID string, recipient *Account, privilege int32) *edam.LinkedNotebook {
	s.mu.Lock()
	defer s.mu.Unlock()

	nb := owner.notebook(notebookGUID)
	if nb == nil {
		panic(fmt.Sprintf("sandbox: ShareNotebook: unknown notebook %s", notebookGUID))
	}
	sh := &share{
		globalID:     uuid.NewString(),
		owner:        owner,
		notebookGUID: notebookGUID,
		privilege:    privilege,
		recipient:    recipient,
		created:      s.now().UnixMilli(),
	}
	s.shares[sh.globalID] = sh
	nb.SharedNotebooks = append(nb.SharedNotebooks, sh.record())

	l := &edam.LinkedNotebook{
		ShareName:              nb.Name,
		Username:               owner.user.Username,
		ShardID:                owner.shard,
		SharedNotebookGlobalID: sh.globalID,
		GUID:                   uuid.NewString(),
		UpdateSequenceNum:      recipient.nextUSN(),
		NoteStoreURL:           s.noteStoreURL(owner.shard),
		WebAPIURLPrefix:        s.webAPIURLPrefix(owner.shard),
	}
	if owner.isBiz {
		l.BusinessID = owner.user.ID
	}
	recipient.linked = append(recipient.linked, l)
	out := *l
	return &out
}

func (sh *share) record() *edam.SharedNotebook {
	return &edam.SharedNotebook{
		ID:                 sh.created,
		UserID:             sh.owner.user.ID,
		NotebookGUID:       sh.notebookGUID,
		Email:              sh.recipient.user.Email,
		NotebookModifiable: sh.privilege >= edam.PrivilegeModifyNotes,
		ServiceCreated:     sh.created,
		ServiceUpdated:     sh.created,
		Privilege:          sh.privilege,
		GlobalID:           sh.globalID,
		Username:           sh.recipient.user.Username,
	}
}

// IssueCode returns a one-time OAuth code that exchanges for a's token.
func (s *Service) IssueCode(a *Account) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := uuid.NewString()
	s.codes[code] = a
	return code
}

// RevokeToken makes token fail with INVALID_AUTH from now on.
func (s *Service) RevokeToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// Inject installs f on method, replacing any previous fault.
func (s *Service) Inject(method string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc := f
	s.faults[method] = &fc
}

// ClearFaults removes every injected fault.
func (s *Service) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]*Fault)
}

// Calls returns how many times method has been invoked.
func (s *Service) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Notes returns a copy of every active note in a.
func (s *Service) Notes(a *Account) []*edam.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*edam.Note
	for _, n := range a.notes {
		if n.Active {
			out = append(out, copyNote(n, true, true))
		}
	}
	return out
}

func (s *Service) issueToken() string {
	return "S=" + uuid.NewString()
}

// fault records the call and returns the fault to apply, if any.
func (s *Service) fault(method string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	f, ok := s.faults[method]
	if !ok {
		return 0, nil
	}
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(s.faults, method)
		}
	}
	return f.Delay, f.Err
}

func (s *Service) applyFault(ctx context.Context, method string) error {
	delay, err := s.fault(method)
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// authenticate resolves token under s.mu.
func (s *Service) authenticate(token string) (*principal, error) {
	if token == "" {
		return nil, &rpc.ApplicationError{Kind: rpc.KindDataRequired, Parameter: "authenticationToken"}
	}
	p, ok := s.tokens[token]
	if !ok {
		return nil, &rpc.ApplicationError{Kind: rpc.KindInvalidAuth, Parameter: "authenticationToken"}
	}
	if !s.now().Before(p.expires) {
		return nil, &rpc.ApplicationError{Kind: rpc.KindAuthExpired, Parameter: "authenticationToken"}
	}
	return p, nil
}

func copyNotebook(nb *edam.Notebook) *edam.Notebook {
	out := *nb
	out.SharedNotebooks = append([]*edam.SharedNotebook(nil), nb.SharedNotebooks...)
	return &out
}

func copyNote(n *edam.Note, withContent, withData bool) *edam.Note {
	out := *n
	if !withContent {
		out.Content = ""
	}
	out.TagGUIDs = append([]string(nil), n.TagGUIDs...)
	out.TagNames = append([]string(nil), n.TagNames...)
	out.Resources = nil
	for _, r := range n.Resources {
		rc := *r
		if r.Data != nil {
			d := *r.Data
			if !withData {
				d.Body = nil
			}
			rc.Data = &d
		}
		out.Resources = append(out.Resources, &rc)
	}
	if n.Attributes != nil {
		a := *n.Attributes
		out.Attributes = &a
	}
	return &out
}
