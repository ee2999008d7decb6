// Package credential defines the authenticated identity persisted between
// sessions.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/jun/gophnote/internal/wire"
)

const formatVersion int32 = 1

// ErrUnsupportedVersion is returned when stored bytes come from a newer format.
var ErrUnsupportedVersion = errors.New("credential: unsupported format version")

// Credential is one authenticated identity against one service host.
type Credential struct {
	Host            string
	UserID          int32
	NoteStoreURL    string
	WebAPIURLPrefix string
	AuthToken       string
	Expiration      time.Time
}

var schema = &wire.StructSchema{
	Name: "Credential",
	Fields: []wire.Field{
		{ID: 1, Name: "version", Type: wire.Int32},
		{ID: 2, Name: "host", Type: wire.String},
		{ID: 3, Name: "userId", Type: wire.Int32, Optional: true},
		{ID: 4, Name: "noteStoreUrl", Type: wire.String},
		{ID: 5, Name: "webApiUrlPrefix", Type: wire.String, Optional: true},
		{ID: 6, Name: "authenticationToken", Type: wire.String},
		{ID: 7, Name: "expiration", Type: wire.Int64},
	},
}

// Valid reports whether c can be used at now.
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.AuthToken == "" || c.NoteStoreURL == "" {
		return false
	}
	return c.Expiration.IsZero() || now.Before(c.Expiration)
}

// MarshalBinary encodes c for the secure store.
func (c *Credential) MarshalBinary() ([]byte, error) {
	s := wire.Struct{
		1: formatVersion,
		2: c.Host,
		4: c.NoteStoreURL,
		6: c.AuthToken,
		7: c.Expiration.UnixMilli(),
	}
	s.SetIf(3, c.UserID)
	s.SetIf(5, c.WebAPIURLPrefix)
	if c.Expiration.IsZero() {
		s[7] = int64(0)
	}
	return wire.Marshal(s, schema)
}

// UnmarshalBinary decodes bytes produced by MarshalBinary.
func (c *Credential) UnmarshalBinary(b []byte) error {
	s, err := wire.Unmarshal(b, schema)
	if err != nil {
		return fmt.Errorf("decode credential: %w", err)
	}
	if v := s.I32(1); v != formatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	*c = Credential{
		Host:            s.Str(2),
		UserID:          s.I32(3),
		NoteStoreURL:    s.Str(4),
		WebAPIURLPrefix: s.Str(5),
		AuthToken:       s.Str(6),
	}
	if ms := s.I64(7); ms != 0 {
		c.Expiration = time.UnixMilli(ms)
	}
	return nil
}
