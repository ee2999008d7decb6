// Package session owns authentication state for one host and hands out the
// store clients that operate on the user's behalf.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jun/gophnote/internal/auth"
	"github.com/jun/gophnote/internal/credential"
	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/keychain"
	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/store"
	"github.com/jun/gophnote/internal/transport"
)

// KeychainService is the service name credentials are stored under. The
// account is the host.
const KeychainService = "gophnote"

var (
	ErrNotAuthenticated         = errors.New("session: not authenticated")
	ErrNotABusinessMember       = errors.New("session: user is not a business member")
	ErrAuthenticationInProgress = errors.New("session: authentication already in progress")
)

// Options configure a Session.
type Options struct {
	Host          string
	Authenticator auth.Authenticator
	// Keychain defaults to an in-memory store.
	Keychain keychain.Store
	// Locker, when set, leases the keychain entry while authenticating so
	// other processes sharing the keychain report
	// ErrAuthenticationInProgress.
	Locker    keychain.Locker
	Transport transport.Transport
	Logger    logging.Logger
	// UserStoreURL defaults to <host>/edam/user.
	UserStoreURL string
	Now          func() time.Time
}

// Session is Unauthenticated until Authenticate or Restore succeeds, and
// returns there on Unauthenticate or when the primary store rejects the token.
type Session struct {
	host          string
	authenticator auth.Authenticator
	keychain      keychain.Store
	locker        keychain.Locker
	owner         string
	transport     transport.Transport
	log           logging.Logger
	userStoreURL  string
	now           func() time.Time

	mu             sync.Mutex
	authenticating bool
	generation     int
	cred           *credential.Credential
	businessCred   *credential.Credential
	user           *edam.User
	appNotebook    bool
	userStore      *store.UserStore
	personal       *store.NoteStore
	business       *store.NoteStore
	linked         map[string]*store.NoteStore

	linkedGroup singleflight.Group
}

// New returns an unauthenticated Session.
func New(opts Options) *Session {
	kc := opts.Keychain
	if kc == nil {
		kc = keychain.NewMemory()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	userStoreURL := opts.UserStoreURL
	if userStoreURL == "" {
		userStoreURL = auth.BaseURL(opts.Host) + "/edam/user"
	}
	return &Session{
		host:          opts.Host,
		authenticator: opts.Authenticator,
		keychain:      kc,
		locker:        opts.Locker,
		owner:         uuid.NewString(),
		transport:     opts.Transport,
		log:           logging.OrDefault(opts.Logger),
		userStoreURL:  userStoreURL,
		now:           now,
		linked:        make(map[string]*store.NoteStore),
	}
}

func (s *Session) Host() string { return s.host }

// Authenticate runs the configured authenticator, persists the credential
// and loads the user. cb runs on a background goroutine. When already
// authenticated cb receives the current credential.
func (s *Session) Authenticate(ctx context.Context, cb store.Callback[*credential.Credential]) {
	if cb == nil {
		cb = func(*credential.Credential, error) {}
	}
	s.mu.Lock()
	if s.cred != nil {
		cred := *s.cred
		s.mu.Unlock()
		go cb(&cred, nil)
		return
	}
	if s.authenticating {
		s.mu.Unlock()
		go cb(nil, ErrAuthenticationInProgress)
		return
	}
	s.authenticating = true
	generation := s.generation
	s.mu.Unlock()

	go func() {
		cred, err := s.authenticate(ctx, generation)
		s.mu.Lock()
		s.authenticating = false
		s.mu.Unlock()
		cb(cred, err)
	}()
}

func (s *Session) authenticate(ctx context.Context, generation int) (*credential.Credential, error) {
	if s.authenticator == nil {
		return nil, fmt.Errorf("session: no authenticator configured")
	}
	if s.locker != nil {
		if err := s.locker.Acquire(ctx, KeychainService, s.host, s.owner); err != nil {
			if errors.Is(err, keychain.ErrLocked) {
				return nil, ErrAuthenticationInProgress
			}
			return nil, err
		}
		defer func() {
			if err := s.locker.Release(context.Background(), KeychainService, s.host, s.owner); err != nil {
				s.log.Errorf("failed to release keychain lease for %s: %v", s.host, err)
			}
		}()
	}
	res, err := s.authenticator.Authenticate(ctx, s.host)
	if err != nil {
		s.log.Infof("authentication to %s failed: %v", s.host, err)
		return nil, err
	}

	b, err := res.Credential.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode credential: %w", err)
	}
	if err := s.keychain.Set(ctx, KeychainService, s.host, b); err != nil {
		return nil, fmt.Errorf("failed to persist credential: %w", err)
	}

	if err := s.install(ctx, res.Credential, res.AppNotebookIsLinked, generation); err != nil {
		if delErr := s.keychain.Delete(context.Background(), KeychainService, s.host); delErr != nil {
			s.log.Errorf("failed to drop credential for %s: %v", s.host, delErr)
		}
		return nil, err
	}
	cred := *res.Credential
	return &cred, nil
}

// Restore loads a persisted credential. A missing credential leaves the
// session unauthenticated without error; an expired, unreadable or revoked
// one is deleted.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	if s.authenticating {
		s.mu.Unlock()
		return ErrAuthenticationInProgress
	}
	if s.cred != nil {
		s.mu.Unlock()
		return nil
	}
	s.authenticating = true
	generation := s.generation
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.authenticating = false
		s.mu.Unlock()
	}()

	b, err := s.keychain.Get(ctx, KeychainService, s.host)
	if err != nil {
		return fmt.Errorf("failed to read credential: %w", err)
	}
	if b == nil {
		return nil
	}

	var cred credential.Credential
	if err := cred.UnmarshalBinary(b); err != nil || !cred.Valid(s.now()) {
		s.log.Infof("discarding stored credential for %s", s.host)
		return s.keychain.Delete(ctx, KeychainService, s.host)
	}

	if err := s.install(ctx, &cred, false, generation); err != nil {
		if rpc.IsAuthFailure(err) {
			s.log.Infof("stored credential for %s was rejected: %v", s.host, err)
			if delErr := s.keychain.Delete(ctx, KeychainService, s.host); delErr != nil {
				return delErr
			}
		}
		return fmt.Errorf("failed to restore session: %w", err)
	}
	return nil
}

// install loads the user for cred and, for business members, the business
// credential. State changes only once everything succeeded, and only if the
// session was not signed out since generation was taken.
func (s *Session) install(ctx context.Context, cred *credential.Credential, appNotebook bool, generation int) error {
	us := store.NewUserStore(s.newClient(s.userStoreURL, cred.AuthToken, true))

	user, businessCred, err := s.bootstrap(ctx, us, cred)
	if err != nil {
		us.Close(ErrNotAuthenticated)
		return err
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		us.Close(ErrNotAuthenticated)
		return fmt.Errorf("%w: signed out while authenticating", ErrNotAuthenticated)
	}
	s.generation++
	s.cred = cred
	s.businessCred = businessCred
	s.user = user
	s.appNotebook = appNotebook
	s.userStore = us
	s.mu.Unlock()

	s.log.Infof("authenticated to %s as user %d", s.host, user.ID)
	return nil
}

func (s *Session) bootstrap(ctx context.Context, us *store.UserStore, cred *credential.Credential) (*edam.User, *credential.Credential, error) {
	userCb, userCh := store.Blocking[*edam.User]()
	us.GetUser(userCb)
	user, err := store.Await(ctx, userCh)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.BusinessUserInfo == nil {
		return user, nil, nil
	}

	bizCb, bizCh := store.Blocking[*edam.AuthenticationResult]()
	us.AuthenticateToBusiness(bizCb)
	res, err := store.Await(ctx, bizCh)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to authenticate to business: %w", err)
	}
	biz := &credential.Credential{
		Host:            cred.Host,
		UserID:          user.ID,
		NoteStoreURL:    res.NoteStoreURL,
		WebAPIURLPrefix: res.WebAPIURLPrefix,
		AuthToken:       res.AuthenticationToken,
	}
	if res.Expiration != 0 {
		biz.Expiration = time.UnixMilli(res.Expiration)
	}
	return user, biz, nil
}

// Unauthenticate drops all credentials and closes every store client handed
// out by this session. Queued calls complete with ErrNotAuthenticated.
func (s *Session) Unauthenticate() {
	s.mu.Lock()
	wasAuthenticated := s.cred != nil
	var clients []*store.Client
	if s.userStore != nil {
		clients = append(clients, s.userStore.Client)
	}
	if s.personal != nil {
		clients = append(clients, s.personal.Client)
	}
	if s.business != nil {
		clients = append(clients, s.business.Client)
	}
	for _, ns := range s.linked {
		clients = append(clients, ns.Client)
	}
	s.generation++
	s.cred = nil
	s.businessCred = nil
	s.user = nil
	s.appNotebook = false
	s.userStore = nil
	s.personal = nil
	s.business = nil
	s.linked = make(map[string]*store.NoteStore)
	s.mu.Unlock()

	for _, c := range clients {
		c.Close(ErrNotAuthenticated)
	}
	if err := s.keychain.Delete(context.Background(), KeychainService, s.host); err != nil {
		s.log.Errorf("failed to delete credential for %s: %v", s.host, err)
	}
	if wasAuthenticated {
		s.log.Infof("unauthenticated from %s", s.host)
	}
}

// newClient builds a store client. Auth failures seen by primary clients
// sign the session out.
func (s *Session) newClient(url, token string, primary bool) *store.Client {
	opts := store.Options{
		Transport: s.transport,
		URL:       url,
		Token:     token,
		Logger:    s.log,
	}
	if primary {
		opts.OnError = func(err error) {
			if rpc.IsAuthFailure(err) {
				s.log.Infof("token for %s rejected: %v", s.host, err)
				s.Unauthenticate()
			}
		}
	}
	return store.NewClient(opts)
}

// Generation changes every time the session signs in or out. State derived
// from one authenticated session can be keyed by it.
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred != nil
}

func (s *Session) IsAuthenticationInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticating
}

func (s *Session) IsBusinessUser() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.businessCred != nil
}

// AppNotebookIsLinked reports whether the user granted access to a single
// notebook owned by another account.
func (s *Session) AppNotebookIsLinked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appNotebook
}

func (s *Session) UserDisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	if s.user.Name != "" {
		return s.user.Name
	}
	return s.user.Username
}

func (s *Session) BusinessDisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.BusinessUserInfo == nil {
		return ""
	}
	return s.user.BusinessUserInfo.BusinessName
}

// UserID returns the authenticated user's id, or zero.
func (s *Session) UserID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// Credential returns a copy of the primary credential, or nil.
func (s *Session) Credential() *credential.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	c := *s.cred
	return &c
}

// BusinessCredential returns a copy of the business credential, or nil.
func (s *Session) BusinessCredential() *credential.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.businessCred == nil {
		return nil
	}
	c := *s.businessCred
	return &c
}

// UserStore returns the user store client.
func (s *Session) UserStore() (*store.UserStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userStore == nil {
		return nil, ErrNotAuthenticated
	}
	return s.userStore, nil
}
