package notes

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jun/gophnote/internal/auth"
	"github.com/jun/gophnote/internal/credential"
	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/enml"
	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/router"
	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/sandbox"
	"github.com/jun/gophnote/internal/session"
	"github.com/jun/gophnote/internal/store"
)

const testApp = "gophnote-test"

func startSandbox(t *testing.T) *sandbox.Service {
	t.Helper()
	svc := sandbox.New(logging.Nop())
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	svc.SetBaseURL(srv.URL)
	return svc
}

func signIn(t *testing.T, svc *sandbox.Service, a *sandbox.Account) (*Service, *session.Session) {
	t.Helper()
	s := session.New(session.Options{
		Host:          svc.BaseURL(),
		Authenticator: auth.NewDeveloperTokenAuthenticator(a.Token(), a.NoteStoreURL()),
		Logger:        logging.Nop(),
	})
	cb, c := store.Blocking[*credential.Credential]()
	s.Authenticate(context.Background(), cb)
	if _, err := store.Await(context.Background(), c); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	return New(s, Options{SourceApplication: testApp, Logger: logging.Nop()}), s
}

func await[R any](t *testing.T, start func(store.Callback[R])) (R, error) {
	t.Helper()
	cb, c := store.Blocking[R]()
	start(cb)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return store.Await(ctx, c)
}

func upload(t *testing.T, n *Service, note *model.Note, policy UploadPolicy, nb *model.Notebook, replace *model.NoteRef) (*model.NoteRef, error) {
	t.Helper()
	return await(t, func(cb store.Callback[*model.NoteRef]) {
		n.UploadNote(context.Background(), note, policy, nb, replace, cb)
	})
}

func listNotebooks(t *testing.T, n *Service) []*model.Notebook {
	t.Helper()
	nbs, err := await(t, func(cb store.Callback[[]*model.Notebook]) {
		n.ListNotebooks(context.Background(), cb)
	})
	if err != nil {
		t.Fatalf("ListNotebooks failed: %v", err)
	}
	return nbs
}

func notebookNamed(t *testing.T, nbs []*model.Notebook, name string) *model.Notebook {
	t.Helper()
	for _, nb := range nbs {
		if nb.Name == name {
			return nb
		}
	}
	t.Fatalf("notebook %q not found", name)
	return nil
}

func find(t *testing.T, n *Service, search Search, nb *model.Notebook, scope Scope, order SortOrder, max int) []string {
	t.Helper()
	results, err := await(t, func(cb store.Callback[[]*model.FindNotesResult]) {
		n.FindNotes(context.Background(), search, nb, scope, order, max, cb)
	})
	if err != nil {
		t.Fatalf("FindNotes failed: %v", err)
	}
	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	return titles
}

func TestUploadAndDownload(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	n, s := signIn(t, svc, alice)

	img := model.NewResource([]byte("png-bytes"), "image/png", "pic.png")
	note := &model.Note{
		Title:     "Groceries",
		Content:   strings.Replace(enml.FromPlainText("milk\neggs"), "</en-note>", img.MediaTag()+"</en-note>", 1),
		TagNames:  []string{"food"},
		Resources: []*model.Resource{img},
	}
	ref, err := upload(t, n, note, Create, nil, nil)
	if err != nil {
		t.Fatalf("UploadNote failed: %v", err)
	}
	if ref.Type != model.NoteTypePersonal || ref.GUID == "" {
		t.Fatalf("unexpected ref %+v", ref)
	}

	b, err := ref.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	restored, err := model.NoteRefFromBytes(b)
	if err != nil || !restored.Equal(ref) {
		t.Fatalf("ref did not survive serialization: %+v, %v", restored, err)
	}
	ns, err := router.New(s).NoteStoreForNote(context.Background(), restored)
	if err != nil {
		t.Fatalf("NoteStoreForNote failed: %v", err)
	}
	personal, _ := s.NoteStore(context.Background(), session.Personal())
	if ns != personal {
		t.Error("Expected the restored ref to resolve to the personal store")
	}

	got, err := await(t, func(cb store.Callback[*model.Note]) {
		n.DownloadNote(context.Background(), restored, cb)
	})
	if err != nil {
		t.Fatalf("DownloadNote failed: %v", err)
	}
	if got.Title != "Groceries" || got.Content != note.Content {
		t.Errorf("unexpected note %q %q", got.Title, got.Content)
	}
	if len(got.TagNames) != 1 || got.TagNames[0] != "food" {
		t.Errorf("Expected tag names [food], got %v", got.TagNames)
	}
	if len(got.Resources) != 1 || !bytes.Equal(got.Resources[0].Data, img.Data) {
		t.Errorf("Expected resource data to round trip, got %+v", got.Resources)
	}

	stored := svc.Notes(alice)
	if len(stored) != 1 || stored[0].Attributes == nil || stored[0].Attributes.SourceApplication != testApp {
		t.Errorf("Expected source application on stored note, got %+v", stored)
	}
}

func TestNilCallbacks(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	n, _ := signIn(t, svc, alice)
	ctx := context.Background()

	n.UploadNote(ctx, &model.Note{Title: "Fire and forget", Content: enml.FromPlainText("x")}, Create, nil, nil, nil)
	n.ListNotebooks(ctx, nil)
	n.ListWritableNotebooks(ctx, nil)
	n.FindNotes(ctx, NewSearch(""), nil, ScopeDefault, SortDefault, 0, nil)

	deadline := time.Now().Add(5 * time.Second)
	for svc.Calls("createNote") == 0 || len(svc.Notes(alice)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the upload")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// The service is still usable after the callback-less calls.
	if got := find(t, n, NewSearch(""), nil, ScopeDefault, SortDefault, 0); len(got) != 1 || got[0] != "Fire and forget" {
		t.Errorf("unexpected notes %v", got)
	}
}

func TestUploadNote_RejectedBeforeNetwork(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	n, _ := signIn(t, svc, alice)
	ref := &model.NoteRef{Type: model.NoteTypePersonal, GUID: "n-1"}
	readOnly := &model.Notebook{GUID: "nb", Name: "ro"}

	tests := []struct {
		name    string
		note    *model.Note
		policy  UploadPolicy
		nb      *model.Notebook
		replace *model.NoteRef
		want    error
	}{
		{"padded title", &model.Note{Title: " x"}, Create, nil, nil, model.ErrInvalidNote},
		{"oversized content", &model.Note{Title: "x", Content: strings.Repeat("a", model.MaxContentBytes+1)}, Create, nil, nil, model.ErrInvalidNote},
		{"too many tags", &model.Note{Title: "x", TagNames: make([]string, model.MaxTags+1)}, Create, nil, nil, model.ErrInvalidNote},
		{"replace without ref", &model.Note{Title: "x"}, Replace, nil, nil, ErrReplaceTargetRequired},
		{"replace with notebook", &model.Note{Title: "x"}, ReplaceOrCreate, readOnly, ref, ErrNotebookWithReplace},
		{"read-only notebook", &model.Note{Title: "x"}, Create, readOnly, nil, ErrReadOnlyNotebook},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := upload(t, n, tt.note, tt.policy, tt.nb, tt.replace); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
	for _, m := range []string{"createNote", "updateNote"} {
		if c := svc.Calls(m); c != 0 {
			t.Errorf("Expected no %s calls, got %d", m, c)
		}
	}
}

func TestUploadNote_ReplacePolicies(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	n, _ := signIn(t, svc, alice)

	ref, err := upload(t, n, &model.Note{Title: "v1"}, Create, nil, nil)
	if err != nil {
		t.Fatalf("UploadNote failed: %v", err)
	}
	replaced, err := upload(t, n, &model.Note{Title: "v2"}, Replace, nil, ref)
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if !replaced.Equal(ref) {
		t.Errorf("Expected replace to keep the ref, got %+v", replaced)
	}
	got, err := await(t, func(cb store.Callback[*model.Note]) {
		n.DownloadNote(context.Background(), ref, cb)
	})
	if err != nil || got.Title != "v2" {
		t.Errorf("Expected title v2, got %+v, %v", got, err)
	}

	gone := &model.NoteRef{Type: model.NoteTypePersonal, GUID: "missing"}
	if _, err := upload(t, n, &model.Note{Title: "v3"}, Replace, nil, gone); rpc.KindOf(err) != rpc.KindNotFound {
		t.Errorf("Expected not found, got %v", err)
	}
	created, err := upload(t, n, &model.Note{Title: "v3"}, ReplaceOrCreate, nil, gone)
	if err != nil {
		t.Fatalf("ReplaceOrCreate failed: %v", err)
	}
	if created.GUID == "missing" || created.Type != model.NoteTypePersonal {
		t.Errorf("Expected a new personal note, got %+v", created)
	}
	if got := len(svc.Notes(alice)); got != 2 {
		t.Errorf("Expected 2 notes, got %d", got)
	}
}

func TestUploadNote_RateLimitIsNotRetried(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	n, s := signIn(t, svc, alice)
	svc.Inject("createNote", sandbox.Fault{Err: &rpc.ApplicationError{Kind: rpc.KindRateLimited, RetryAfter: 30}})

	_, err := upload(t, n, &model.Note{Title: "x"}, Create, nil, nil)
	d, ok := rpc.RetryAfter(err)
	if !ok || d != 30*time.Second {
		t.Fatalf("Expected rate limit with 30s hint, got %v", err)
	}
	if c := svc.Calls("createNote"); c != 1 {
		t.Errorf("Expected exactly one createNote call, got %d", c)
	}
	if !s.IsAuthenticated() {
		t.Error("a rate limit must not sign the session out")
	}
}

func TestListNotebooks(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	bob := svc.AddUser("bob")
	svc.AddNotebook(alice, "Work")
	recipes := svc.AddNotebook(bob, "Recipes")
	svc.ShareNotebook(bob, recipes.GUID, alice, edam.PrivilegeReadNotes)
	svc.JoinBusiness(alice, "Acme")
	n, _ := signIn(t, svc, alice)

	nbs := listNotebooks(t, n)
	if len(nbs) != 4 {
		t.Fatalf("Expected 4 notebooks, got %d", len(nbs))
	}
	def := notebookNamed(t, nbs, "alice's notebook")
	if !def.IsDefault || !def.IsOwnedByUser || !def.AllowsWriting || def.NoteType() != model.NoteTypePersonal {
		t.Errorf("unexpected default notebook %+v", def)
	}
	shared := notebookNamed(t, nbs, "Recipes")
	if !shared.IsJoinedShared || shared.AllowsWriting || shared.OwnerDisplayName != "bob" || shared.GUID != recipes.GUID {
		t.Errorf("unexpected shared notebook %+v", shared)
	}
	biz := notebookNamed(t, nbs, "Acme notebook")
	if !biz.IsBusiness || !biz.AllowsWriting || biz.NoteType() != model.NoteTypeBusiness {
		t.Errorf("unexpected business notebook %+v", biz)
	}

	writable, err := await(t, func(cb store.Callback[[]*model.Notebook]) {
		n.ListWritableNotebooks(context.Background(), cb)
	})
	if err != nil {
		t.Fatalf("ListWritableNotebooks failed: %v", err)
	}
	if len(writable) != 3 {
		t.Errorf("Expected 3 writable notebooks, got %d", len(writable))
	}

	calls := svc.Calls("listNotebooks")
	listNotebooks(t, n)
	if svc.Calls("listNotebooks") != calls {
		t.Error("Expected cached notebooks on the second call")
	}
	n.CleanNotebookCache()
	listNotebooks(t, n)
	if svc.Calls("listNotebooks") == calls {
		t.Error("Expected a fresh listing after CleanNotebookCache")
	}
}

func TestListNotebooks_CacheEndsWithSession(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	n, s := signIn(t, svc, alice)

	if got := len(listNotebooks(t, n)); got != 1 {
		t.Fatalf("Expected 1 notebook, got %d", got)
	}

	s.Unauthenticate()
	svc.AddNotebook(alice, "Added While Signed Out")
	cb, c := store.Blocking[*credential.Credential]()
	s.Authenticate(context.Background(), cb)
	if _, err := store.Await(context.Background(), c); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	nbs := listNotebooks(t, n)
	if len(nbs) != 2 {
		t.Fatalf("Expected a fresh listing with 2 notebooks after signing back in, got %d", len(nbs))
	}
	notebookNamed(t, nbs, "Added While Signed Out")
}

func TestListNotebooks_BusinessOrderIsStable(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	bob := svc.AddUser("bob")
	svc.JoinBusiness(alice, "Acme")
	other := svc.JoinBusiness(bob, "Other")
	want := []string{"Zeta", "Alpha", "Mid"}
	for _, name := range want {
		nb := svc.AddNotebook(other, name)
		svc.ShareNotebook(other, nb.GUID, alice, edam.PrivilegeReadNotes)
	}
	n, _ := signIn(t, svc, alice)

	for i := 0; i < 20; i++ {
		n.CleanNotebookCache()
		nbs := listNotebooks(t, n)
		if len(nbs) < len(want) {
			t.Fatalf("Expected at least %d notebooks, got %d", len(want), len(nbs))
		}
		tail := nbs[len(nbs)-len(want):]
		for j, nb := range tail {
			if nb.Name != want[j] || !nb.IsBusiness {
				t.Fatalf("run %d: notebook %d = %q (business=%v), want %q", i, j, nb.Name, nb.IsBusiness, want[j])
			}
		}
	}
}

func TestSharedNotebookNotes(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	bob := svc.AddUser("bob")
	recipes := svc.AddNotebook(bob, "Recipes")
	svc.ShareNotebook(bob, recipes.GUID, alice, edam.PrivilegeModifyNotes)
	n, _ := signIn(t, svc, alice)

	shared := notebookNamed(t, listNotebooks(t, n), "Recipes")
	ref, err := upload(t, n, &model.Note{Title: "Soup"}, Create, shared, nil)
	if err != nil {
		t.Fatalf("UploadNote to shared notebook failed: %v", err)
	}
	if ref.Type != model.NoteTypeLinked || ref.Linked == nil {
		t.Fatalf("Expected a linked ref, got %+v", ref)
	}
	if notes := svc.Notes(bob); len(notes) != 1 || notes[0].NotebookGUID != recipes.GUID {
		t.Errorf("Expected the note in bob's notebook, got %+v", notes)
	}

	got, err := await(t, func(cb store.Callback[*model.Note]) {
		n.DownloadNote(context.Background(), ref, cb)
	})
	if err != nil || got.Title != "Soup" {
		t.Errorf("DownloadNote through linked ref: %+v, %v", got, err)
	}

	if _, err := await(t, func(cb store.Callback[string]) {
		n.ShareNote(context.Background(), ref, cb)
	}); rpc.KindOf(err) != rpc.KindPermissionDenied {
		t.Errorf("Expected permission denied sharing without full access, got %v", err)
	}
	if n := svc.Calls("authenticateToSharedNotebook"); n != 1 {
		t.Errorf("Expected one shared notebook authentication, got %d", n)
	}
}

func TestShareAndDeleteNote(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	n, _ := signIn(t, svc, alice)

	ref, err := upload(t, n, &model.Note{Title: "Public"}, Create, nil, nil)
	if err != nil {
		t.Fatalf("UploadNote failed: %v", err)
	}
	url, err := await(t, func(cb store.Callback[string]) {
		n.ShareNote(context.Background(), ref, cb)
	})
	if err != nil {
		t.Fatalf("ShareNote failed: %v", err)
	}
	prefix := alice.WebAPIURLPrefix() + "sh/" + ref.GUID + "/"
	if !strings.HasPrefix(url, prefix) || len(url) != len(prefix)+16 {
		t.Errorf("unexpected share url %q", url)
	}

	done := make(chan error, 1)
	n.DeleteNote(context.Background(), ref, func(err error) { done <- err })
	if err := <-done; err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if titles := find(t, n, Search{}, nil, ScopeDefault, SortDefault, 0); len(titles) != 0 {
		t.Errorf("Expected deleted note to be gone from search, got %v", titles)
	}
}

func TestFindNotes(t *testing.T) {
	svc := startSandbox(t)
	alice := svc.AddUser("alice")
	bob := svc.AddUser("bob")
	biz := svc.JoinBusiness(alice, "Acme")
	for _, title := range []string{"banana", "Apple", "cherry"} {
		svc.AddNote(alice, "", title, "")
	}
	pantry := svc.AddNotebook(bob, "Pantry")
	svc.AddNote(bob, pantry.GUID, "date", "")
	svc.AddNote(bob, "", "bob's private", "")
	svc.ShareNotebook(bob, pantry.GUID, alice, edam.PrivilegeReadNotes)
	svc.AddNote(biz, "", "Elder", "")
	n, _ := signIn(t, svc, alice)

	tests := []struct {
		name   string
		search Search
		scope  Scope
		order  SortOrder
		max    int
		want   []string
	}{
		{"default scope", Search{}, ScopeNone, SortDefault, 0, []string{"Apple", "banana", "cherry"}},
		{"everything", Search{}, ScopeAll, SortTitle, 0, []string{"Apple", "banana", "cherry", "date", "Elder"}},
		{"everything reversed", Search{}, ScopeAll, SortTitle | SortReverse, 0, []string{"Elder", "date", "cherry", "banana", "Apple"}},
		{"max results", Search{}, ScopeAll, SortTitle, 2, []string{"Apple", "banana"}},
		{"query", NewSearch("intitle:an"), ScopeAll, SortTitle, 0, []string{"banana"}},
		{"linked only", Search{}, ScopePersonalLinked, SortTitle, 0, []string{"date"}},
		{"business only", Search{}, ScopeBusiness, SortTitle, 0, []string{"Elder"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := find(t, n, tt.search, nil, tt.scope, tt.order, tt.max)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("FindNotes() = %v, want %v", got, tt.want)
			}
		})
	}

	results, err := await(t, func(cb store.Callback[[]*model.FindNotesResult]) {
		n.FindNotes(context.Background(), Search{}, nil, ScopeAll, SortTitle, 0, cb)
	})
	if err != nil {
		t.Fatalf("FindNotes failed: %v", err)
	}
	wantTypes := []model.NoteType{model.NoteTypePersonal, model.NoteTypePersonal, model.NoteTypePersonal, model.NoteTypeLinked, model.NoteTypeBusiness}
	for i, r := range results {
		if r.NoteRef.Type != wantTypes[i] || r.Notebook == nil {
			t.Errorf("result %q: type %v notebook %v", r.Title, r.NoteRef.Type, r.Notebook)
		}
	}

	pantryNB := notebookNamed(t, listNotebooks(t, n), "Pantry")
	if got := find(t, n, Search{}, pantryNB, ScopeNone, SortTitle, 0); len(got) != 1 || got[0] != "date" {
		t.Errorf("Expected [date] in Pantry, got %v", got)
	}

	if _, err := upload(t, n, &model.Note{Title: "from app"}, Create, nil, nil); err != nil {
		t.Fatalf("UploadNote failed: %v", err)
	}
	if got := find(t, n, n.CreatedByThisApplication(), nil, ScopeDefault, SortTitle, 0); len(got) != 1 || got[0] != "from app" {
		t.Errorf("Expected only the app's note, got %v", got)
	}
}

func TestNotAuthenticated(t *testing.T) {
	s := session.New(session.Options{Host: "example.com", Logger: logging.Nop()})
	n := New(s, Options{Logger: logging.Nop()})
	if _, err := await(t, func(cb store.Callback[[]*model.Notebook]) {
		n.ListNotebooks(context.Background(), cb)
	}); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
}
