package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jun/gophnote/internal/credential"
)

// DeveloperTokenAuthenticator returns a credential for a fixed token, used
// against sandboxes and for scripted access.
type DeveloperTokenAuthenticator struct {
	Token           string
	NoteStoreURL    string
	WebAPIURLPrefix string
	now             func() time.Time
}

func NewDeveloperTokenAuthenticator(token, noteStoreURL string) *DeveloperTokenAuthenticator {
	return &DeveloperTokenAuthenticator{Token: token, NoteStoreURL: noteStoreURL, now: time.Now}
}

func (a *DeveloperTokenAuthenticator) Authenticate(_ context.Context, host string) (*Result, error) {
	if a.Token == "" || a.NoteStoreURL == "" {
		return nil, ErrNoDeveloperToken
	}
	now := time.Now
	if a.now != nil {
		now = a.now
	}

	prefix := a.WebAPIURLPrefix
	if prefix == "" {
		prefix = strings.TrimSuffix(a.NoteStoreURL, "notestore")
	}
	return &Result{Credential: &credential.Credential{
		Host:            host,
		UserID:          userIDFromToken(a.Token),
		NoteStoreURL:    a.NoteStoreURL,
		WebAPIURLPrefix: prefix,
		AuthToken:       a.Token,
		Expiration:      tokenExpiry(a.Token, now()),
	}}, nil
}

// tokenExpiry reads the exp claim when token is a JWT. The signature is not
// checked; the service does that. Opaque tokens get DefaultLifetime.
func tokenExpiry(token string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now.Add(DefaultLifetime)
}

// userIDFromToken extracts the hex user id from "S=s1:U=2a:E=...". Zero when absent.
func userIDFromToken(token string) int32 {
	for _, part := range strings.Split(token, ":") {
		if v, ok := strings.CutPrefix(part, "U="); ok {
			n, err := strconv.ParseInt(v, 16, 32)
			if err == nil {
				return int32(n)
			}
		}
	}
	return 0
}
