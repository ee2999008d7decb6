package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jun/gophnote/internal/auth"
	"github.com/jun/gophnote/internal/credential"
	"github.com/jun/gophnote/internal/crypto"
	"github.com/jun/gophnote/internal/keychain"
	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/sandbox"
	"github.com/jun/gophnote/internal/secret"
	"github.com/jun/gophnote/internal/store"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOPHNOTE_HOST", "sandbox.example.com")
	t.Setenv("GOPHNOTE_CONSUMER_KEY", "key")
	t.Setenv("KEYCHAIN_TABLE", "")
	t.Setenv("DEV_MODE", "true")

	cfg := ConfigFromEnv()
	if cfg.Host != "sandbox.example.com" || cfg.ConsumerKey != "key" || !cfg.DevMode {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.KeychainTable != DefaultKeychainTable || cfg.ConsumerSecretParam != DefaultConsumerSecretParam {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gophnote.yaml")
	data := "host: sandbox.example.com\nnote_store_url: https://sandbox.example.com/shard/s1/notestore\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path, Config{Host: DefaultHost, KeychainTable: "t"})
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Host != "sandbox.example.com" || cfg.NoteStoreURL == "" || cfg.KeychainTable != "t" {
		t.Errorf("unexpected config %+v", cfg)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), Config{}); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestNewAuthenticator(t *testing.T) {
	ctx := context.Background()
	resolver := secret.StaticResolver{
		DefaultDeveloperTokenParam: "S=s1:U=1:E=1:C=1",
		DefaultConsumerSecretParam: "shh",
	}
	base := Config{Host: "sandbox.example.com", ConsumerSecretParam: DefaultConsumerSecretParam, DeveloperTokenParam: DefaultDeveloperTokenParam}

	dev := base
	dev.NoteStoreURL = "https://sandbox.example.com/shard/s1/notestore"
	a, err := NewAuthenticator(ctx, dev, resolver, nil)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	if _, ok := a.(*auth.DeveloperTokenAuthenticator); !ok {
		t.Errorf("Expected developer token authenticator, got %T", a)
	}

	oauth := base
	oauth.ConsumerKey = "key"
	a, err = NewAuthenticator(ctx, oauth, resolver, nil)
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}
	oa, ok := a.(*auth.OAuthAuthenticator)
	if !ok || oa.Config().ClientSecret != "shh" {
		t.Errorf("Expected OAuth authenticator with resolved secret, got %T", a)
	}

	if _, err := NewAuthenticator(ctx, base, resolver, nil); err == nil {
		t.Error("Expected error without consumer key or note store url")
	}
	dev.DeveloperTokenParam = "/missing"
	if _, err := NewAuthenticator(ctx, dev, resolver, nil); !errors.Is(err, secret.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBuild_RestoresStoredCredential(t *testing.T) {
	svc := sandbox.New(logging.Nop())
	srv := httptest.NewServer(svc)
	defer srv.Close()
	svc.SetBaseURL(srv.URL)
	alice := svc.AddUser("alice")

	cfg := Config{
		Host:                svc.BaseURL(),
		NoteStoreURL:        alice.NoteStoreURL(),
		DeveloperTokenParam: "token",
		SourceApplication:   "app-test",
	}
	kc := keychain.NewEncrypted(keychain.NewDynamo(nil, "creds"), crypto.NewMockEncryptor())
	deps := Deps{
		Resolver: secret.StaticResolver{"token": alice.Token()},
		Keychain: kc,
		Locker:   keychain.NewDynamoLocker(nil, "leases"),
		Logger:   logging.Nop(),
	}

	first, err := Build(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if first.Session.IsAuthenticated() {
		t.Fatal("Expected no stored credential yet")
	}
	cb, c := store.Blocking[*credential.Credential]()
	first.Session.Authenticate(context.Background(), cb)
	if _, err := store.Await(context.Background(), c); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	second, err := Build(context.Background(), cfg, deps)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !second.Session.IsAuthenticated() || second.Session.UserDisplayName() != "alice" {
		t.Error("Expected the second app to restore the stored credential")
	}
	if second.Notes.SourceApplication() != "app-test" {
		t.Errorf("unexpected source application %q", second.Notes.SourceApplication())
	}
}
