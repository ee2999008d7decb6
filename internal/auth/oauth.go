package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/jun/gophnote/internal/credential"
)

// DefaultLifetime is used when the service does not report an expiry.
const DefaultLifetime = 365 * 24 * time.Hour

// CodePrompt shows authURL to the user and returns the verifier they obtained.
// An empty code means the user cancelled.
type CodePrompt func(ctx context.Context, authURL string) (string, error)

// OAuthAuthenticator runs the OAuth2 authorization code flow against a host.
type OAuthAuthenticator struct {
	oauthConfig *oauth2.Config
	prompt      CodePrompt
}

// NewOAuthConfig builds the OAuth2 config for host with the app's consumer key and secret.
func NewOAuthConfig(host, consumerKey, consumerSecret, redirectURL string) *oauth2.Config {
	base := BaseURL(host)
	return &oauth2.Config{
		ClientID:     consumerKey,
		ClientSecret: consumerSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/OAuth.action",
			TokenURL:  base + "/oauth",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// NewOAuthAuthenticator creates a new OAuthAuthenticator. The config should
// be constructed by the caller (e.g., with NewOAuthConfig).
func NewOAuthAuthenticator(oauthConfig *oauth2.Config, prompt CodePrompt) *OAuthAuthenticator {
	return &OAuthAuthenticator{oauthConfig: oauthConfig, prompt: prompt}
}

// Config returns the OAuth2 config.
func (a *OAuthAuthenticator) Config() *oauth2.Config {
	return a.oauthConfig
}

// AuthURL returns the URL the user visits to grant access.
func (a *OAuthAuthenticator) AuthURL(state string) string {
	return a.oauthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("supportLinkedSandbox", "true"))
}

// Authenticate asks the prompt for a code and exchanges it.
func (a *OAuthAuthenticator) Authenticate(ctx context.Context, host string) (*Result, error) {
	if a.prompt == nil {
		return nil, fmt.Errorf("auth: no code prompt configured")
	}
	code, err := a.prompt(ctx, a.AuthURL(uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("auth prompt: %w", err)
	}
	if code == "" {
		return nil, ErrCancelled
	}
	return a.Exchange(ctx, host, code)
}

// Exchange trades code for a token and maps the service's token extras to a Credential.
func (a *OAuthAuthenticator) Exchange(ctx context.Context, host, code string) (*Result, error) {
	token, err := a.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	noteStoreURL := extraString(token, "edam_noteStoreUrl")
	if noteStoreURL == "" {
		return nil, fmt.Errorf("token response has no note store url")
	}

	cred := &credential.Credential{
		Host:            host,
		UserID:          int32(extraInt(token, "edam_userId")),
		NoteStoreURL:    noteStoreURL,
		WebAPIURLPrefix: extraString(token, "edam_webApiUrlPrefix"),
		AuthToken:       token.AccessToken,
	}
	switch ms := extraInt(token, "edam_expires"); {
	case ms > 0:
		cred.Expiration = time.UnixMilli(ms)
	case !token.Expiry.IsZero():
		cred.Expiration = token.Expiry
	default:
		cred.Expiration = time.Now().Add(DefaultLifetime)
	}

	linked, _ := strconv.ParseBool(extraString(token, "edam_isLinkedNotebook"))
	return &Result{Credential: cred, AppNotebookIsLinked: linked}, nil
}

// Extras arrive as strings from form responses and as JSON values otherwise.
func extraString(token *oauth2.Token, key string) string {
	switch v := token.Extra(key).(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprint(v)
	}
}

func extraInt(token *oauth2.Token, key string) int64 {
	n, _ := strconv.ParseInt(extraString(token, key), 10, 64)
	return n
}
