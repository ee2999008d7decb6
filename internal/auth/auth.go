// Package auth obtains credentials for a note service host, either through
// the OAuth code flow or from a statically configured developer token.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jun/gophnote/internal/credential"
)

var (
	// ErrCancelled is returned when the user abandons the login flow.
	ErrCancelled = errors.New("auth: authentication cancelled")
	// ErrNoDeveloperToken is returned when no developer token is configured.
	ErrNoDeveloperToken = errors.New("auth: developer token is not configured")
)

// Result is the outcome of a successful authentication.
type Result struct {
	Credential *credential.Credential
	// AppNotebookIsLinked is set when the user granted access to a single
	// notebook that lives in another account.
	AppNotebookIsLinked bool
}

// Authenticator yields a credential for host.
type Authenticator interface {
	Authenticate(ctx context.Context, host string) (*Result, error)
}

// BaseURL returns the service root for host. A host that already carries a
// scheme is used as is.
func BaseURL(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/")
	}
	return "https://" + host
}
