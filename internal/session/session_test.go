package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jun/gophnote/internal/auth"
	"github.com/jun/gophnote/internal/credential"
	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/keychain"
	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/sandbox"
	"github.com/jun/gophnote/internal/store"
)

func startSandbox(t *testing.T) *sandbox.Service {
	t.Helper()
	svc := sandbox.New(logging.Nop())
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	svc.SetBaseURL(srv.URL)
	return svc
}

func newSession(svc *sandbox.Service, a *sandbox.Account, kc keychain.Store) *Session {
	return New(Options{
		Host:          svc.BaseURL(),
		Authenticator: auth.NewDeveloperTokenAuthenticator(a.Token(), a.NoteStoreURL()),
		Keychain:      kc,
		Logger:        logging.Nop(),
	})
}

func authenticate(t *testing.T, s *Session) (*credential.Credential, error) {
	t.Helper()
	cb, c := store.Blocking[*credential.Credential]()
	s.Authenticate(context.Background(), cb)
	return store.Await(context.Background(), c)
}

func mustAuthenticate(t *testing.T, s *Session) {
	t.Helper()
	if _, err := authenticate(t, s); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
}

func TestAuthenticate_PersistsAndLoadsUser(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	kc := keychain.NewMemory()
	s := newSession(svc, alice, kc)

	if s.IsAuthenticated() {
		t.Fatal("new session should be unauthenticated")
	}
	if _, err := s.NoteStore(context.Background(), Personal()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}

	cred, err := authenticate(t, s)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if cred.AuthToken != alice.Token() {
		t.Errorf("unexpected credential %+v", cred)
	}
	if !s.IsAuthenticated() || s.UserDisplayName() != "alice" || s.UserID() != alice.ID() {
		t.Errorf("unexpected session state: auth=%v name=%q id=%d", s.IsAuthenticated(), s.UserDisplayName(), s.UserID())
	}
	if s.IsBusinessUser() {
		t.Error("alice is not a business user")
	}

	stored, err := kc.Get(context.Background(), KeychainService, svc.BaseURL())
	if err != nil || stored == nil {
		t.Fatalf("Expected stored credential, got %v, %v", stored, err)
	}
	var decoded credential.Credential
	if err := decoded.UnmarshalBinary(stored); err != nil || decoded.AuthToken != alice.Token() {
		t.Errorf("unexpected stored credential %+v, err %v", decoded, err)
	}

	if _, err := s.NoteStore(context.Background(), Business()); !errors.Is(err, ErrNotABusinessMember) {
		t.Errorf("Expected ErrNotABusinessMember, got %v", err)
	}
}

type blockingAuthenticator struct {
	release chan struct{}
	inner   auth.Authenticator
}

func (b *blockingAuthenticator) Authenticate(ctx context.Context, host string) (*auth.Result, error) {
	<-b.release
	return b.inner.Authenticate(ctx, host)
}

func TestAuthenticate_SingleFlight(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	blocker := &blockingAuthenticator{
		release: make(chan struct{}),
		inner:   auth.NewDeveloperTokenAuthenticator(alice.Token(), alice.NoteStoreURL()),
	}
	s := New(Options{Host: svc.BaseURL(), Authenticator: blocker, Logger: logging.Nop()})

	firstCb, first := store.Blocking[*credential.Credential]()
	s.Authenticate(context.Background(), firstCb)
	if !s.IsAuthenticationInProgress() {
		t.Error("Expected authentication in progress")
	}

	if _, err := authenticate(t, s); !errors.Is(err, ErrAuthenticationInProgress) {
		t.Errorf("Expected ErrAuthenticationInProgress, got %v", err)
	}

	close(blocker.release)
	if _, err := store.Await(context.Background(), first); err != nil {
		t.Fatalf("first Authenticate failed: %v", err)
	}
	if s.IsAuthenticationInProgress() || !s.IsAuthenticated() {
		t.Error("Expected authenticated, not in progress")
	}
}

type gatedAuthenticator struct {
	entered chan struct{}
	release chan struct{}
	inner   auth.Authenticator
}

func (g *gatedAuthenticator) Authenticate(ctx context.Context, host string) (*auth.Result, error) {
	close(g.entered)
	<-g.release
	return g.inner.Authenticate(ctx, host)
}

func TestAuthenticate_SharedLease(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	kc := keychain.NewMemory()
	locker := keychain.NewMemoryLocker()
	gate := &gatedAuthenticator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		inner:   auth.NewDeveloperTokenAuthenticator(alice.Token(), alice.NoteStoreURL()),
	}
	first := New(Options{Host: svc.BaseURL(), Authenticator: gate, Keychain: kc, Locker: locker, Logger: logging.Nop()})
	second := New(Options{
		Host:          svc.BaseURL(),
		Authenticator: auth.NewDeveloperTokenAuthenticator(alice.Token(), alice.NoteStoreURL()),
		Keychain:      kc,
		Locker:        locker,
		Logger:        logging.Nop(),
	})

	firstCb, firstDone := store.Blocking[*credential.Credential]()
	first.Authenticate(context.Background(), firstCb)
	<-gate.entered

	if _, err := authenticate(t, second); !errors.Is(err, ErrAuthenticationInProgress) {
		t.Errorf("Expected ErrAuthenticationInProgress while the lease is held, got %v", err)
	}
	if second.IsAuthenticationInProgress() {
		t.Error("second session should not stay in progress")
	}

	close(gate.release)
	if _, err := store.Await(context.Background(), firstDone); err != nil {
		t.Fatalf("first Authenticate failed: %v", err)
	}
	mustAuthenticate(t, second)
	if !second.IsAuthenticated() {
		t.Error("Expected second session to authenticate once the lease is released")
	}
}

func TestUnauthenticate_DuringAuthenticate(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	kc := keychain.NewMemory()
	gate := &gatedAuthenticator{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		inner:   auth.NewDeveloperTokenAuthenticator(alice.Token(), alice.NoteStoreURL()),
	}
	s := New(Options{Host: svc.BaseURL(), Authenticator: gate, Keychain: kc, Logger: logging.Nop()})

	cb, done := store.Blocking[*credential.Credential]()
	s.Authenticate(context.Background(), cb)
	<-gate.entered
	s.Unauthenticate()
	close(gate.release)

	if _, err := store.Await(context.Background(), done); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
	if s.IsAuthenticated() {
		t.Error("sign-out during authentication must not be undone")
	}
	if b, _ := kc.Get(context.Background(), KeychainService, svc.BaseURL()); b != nil {
		t.Error("Expected no persisted credential")
	}
	if s.IsAuthenticationInProgress() {
		t.Error("Expected the attempt to be finished")
	}
}

func TestAuthenticate_NilCallback(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	s := newSession(svc, alice, keychain.NewMemory())

	before := s.Generation()
	s.Authenticate(context.Background(), nil)
	deadline := time.Now().Add(5 * time.Second)
	for !s.IsAuthenticated() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for authentication")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Already authenticated: the callback path runs again without one.
	s.Authenticate(context.Background(), nil)
	if s.Generation() == before {
		t.Error("Expected the generation to change on sign-in")
	}
}

type cancellingAuthenticator struct{}

func (cancellingAuthenticator) Authenticate(context.Context, string) (*auth.Result, error) {
	return nil, auth.ErrCancelled
}

func TestAuthenticate_Cancelled(t *testing.T) {
	kc := keychain.NewMemory()
	s := New(Options{Host: "example.com", Authenticator: cancellingAuthenticator{}, Keychain: kc, Logger: logging.Nop()})

	if _, err := authenticate(t, s); !errors.Is(err, auth.ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", err)
	}
	if s.IsAuthenticated() {
		t.Error("Expected to remain unauthenticated")
	}
	if b, _ := kc.Get(context.Background(), KeychainService, "example.com"); b != nil {
		t.Error("Expected nothing persisted")
	}
}

func TestRestore(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	kc := keychain.NewMemory()
	mustAuthenticate(t, newSession(svc, alice, kc))

	restored := newSession(svc, alice, kc)
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !restored.IsAuthenticated() || restored.Credential().AuthToken != alice.Token() {
		t.Errorf("Expected restored session, got %+v", restored.Credential())
	}

	empty := newSession(svc, alice, keychain.NewMemory())
	if err := empty.Restore(context.Background()); err != nil || empty.IsAuthenticated() {
		t.Errorf("Expected no-op restore, got err=%v auth=%v", err, empty.IsAuthenticated())
	}
}

func TestRestore_DiscardsExpiredAndRevoked(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	host := svc.BaseURL()
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		kc := keychain.NewMemory()
		b, _ := (&credential.Credential{
			Host:         host,
			NoteStoreURL: alice.NoteStoreURL(),
			AuthToken:    alice.Token(),
			Expiration:   time.Now().Add(-time.Hour),
		}).MarshalBinary()
		kc.Set(ctx, KeychainService, host, b)

		s := newSession(svc, alice, kc)
		if err := s.Restore(ctx); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if s.IsAuthenticated() {
			t.Error("Expected expired credential to be ignored")
		}
		if got, _ := kc.Get(ctx, KeychainService, host); got != nil {
			t.Error("Expected expired credential to be deleted")
		}
	})

	t.Run("revoked", func(t *testing.T) {
		bob := svc.AddUser("bob")
		kc := keychain.NewMemory()
		mustAuthenticate(t, newSession(svc, bob, kc))
		svc.RevokeToken(bob.Token())

		s := newSession(svc, bob, kc)
		if err := s.Restore(ctx); !rpc.IsAuthFailure(err) {
			t.Errorf("Expected auth failure, got %v", err)
		}
		if s.IsAuthenticated() {
			t.Error("Expected revoked credential to be rejected")
		}
		if got, _ := kc.Get(ctx, KeychainService, host); got != nil {
			t.Error("Expected revoked credential to be deleted")
		}
	})
}

func TestUnauthenticate_MidQueue(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	kc := keychain.NewMemory()
	s := newSession(svc, alice, kc)
	mustAuthenticate(t, s)

	ns, err := s.NoteStore(context.Background(), Personal())
	if err != nil {
		t.Fatalf("NoteStore failed: %v", err)
	}
	svc.Inject("listNotebooks", sandbox.Fault{Delay: 5 * time.Second})

	var mu sync.Mutex
	var order []string
	errs := map[string]error{}
	record := func(name string) func(error) {
		return func(err error) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			errs[name] = err
		}
	}
	a := ns.ListNotebooks(func(_ []*edam.Notebook, err error) { record("A")(err) })
	ns.GetDefaultNotebook(func(_ *edam.Notebook, err error) { record("B")(err) })
	c := ns.GetDefaultNotebook(func(_ *edam.Notebook, err error) { record("C")(err) })

	deadline := time.Now().Add(5 * time.Second)
	for svc.Calls("listNotebooks") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Unauthenticate()
	s.Unauthenticate()

	<-a.Done()
	<-c.Done()
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "A" || order[1] != "B" || order[2] != "C" {
		t.Fatalf("Expected completion order A B C, got %v", order)
	}
	if !errors.Is(errs["A"], rpc.ErrCancelled) {
		t.Errorf("Expected in-flight call cancelled, got %v", errs["A"])
	}
	for _, name := range []string{"B", "C"} {
		if !errors.Is(errs[name], ErrNotAuthenticated) {
			t.Errorf("Expected %s to complete with ErrNotAuthenticated, got %v", name, errs[name])
		}
	}
	if s.IsAuthenticated() {
		t.Error("Expected unauthenticated")
	}
	if got, _ := kc.Get(context.Background(), KeychainService, svc.BaseURL()); got != nil {
		t.Error("Expected credential removed from keychain")
	}
	if svc.Calls("getDefaultNotebook") != 0 {
		t.Error("queued calls must not reach the service after sign-out")
	}
}

func TestRevokedTokenSignsOut(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	s := newSession(svc, alice, nil)
	mustAuthenticate(t, s)

	ns, _ := s.NoteStore(context.Background(), Personal())
	svc.RevokeToken(alice.Token())

	cb, c := store.Blocking[[]*edam.Notebook]()
	ns.ListNotebooks(cb)
	if _, err := store.Await(context.Background(), c); !rpc.IsAuthFailure(err) {
		t.Fatalf("Expected auth failure, got %v", err)
	}
	if s.IsAuthenticated() {
		t.Error("Expected session to sign out on a rejected token")
	}
}

func TestBusinessStore(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	biz := svc.JoinBusiness(alice, "Acme")
	s := newSession(svc, alice, nil)
	mustAuthenticate(t, s)

	if !s.IsBusinessUser() || s.BusinessDisplayName() != "Acme" {
		t.Errorf("Expected business user of Acme, got %v %q", s.IsBusinessUser(), s.BusinessDisplayName())
	}
	ns, err := s.NoteStore(context.Background(), Business())
	if err != nil {
		t.Fatalf("NoteStore(Business) failed: %v", err)
	}
	if ns.URL() != biz.NoteStoreURL() {
		t.Errorf("Expected business store %s, got %s", biz.NoteStoreURL(), ns.URL())
	}
	again, _ := s.NoteStore(context.Background(), Business())
	if again != ns {
		t.Error("Expected cached business store")
	}
}

func TestLinkedStore_AuthenticatesOnce(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	bob := svc.AddUser("bob")
	nb := svc.AddNotebook(alice, "Shared")
	linked := svc.ShareNotebook(alice, nb.GUID, bob, edam.PrivilegeModifyNotes)

	s := newSession(svc, bob, nil)
	mustAuthenticate(t, s)
	target := Linked(model.LinkedNotebookRefFrom(linked))

	var wg sync.WaitGroup
	stores := make([]*store.NoteStore, 8)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ns, err := s.NoteStore(context.Background(), target)
			if err != nil {
				t.Errorf("NoteStore(Linked) failed: %v", err)
				return
			}
			stores[i] = ns
		}(i)
	}
	wg.Wait()

	for _, ns := range stores {
		if ns != stores[0] {
			t.Fatal("Expected every caller to get the same linked store")
		}
	}
	if n := svc.Calls("authenticateToSharedNotebook"); n != 1 {
		t.Errorf("Expected one shared notebook authentication, got %d", n)
	}
	if stores[0].Token() == bob.Token() {
		t.Error("Expected the linked store to use the shared notebook token")
	}

	cb, c := store.Blocking[*edam.SharedNotebook]()
	stores[0].GetSharedNotebookByAuth(cb)
	if sn, err := store.Await(context.Background(), c); err != nil || sn.NotebookGUID != nb.GUID {
		t.Errorf("unexpected shared notebook %+v, err %v", sn, err)
	}
}
