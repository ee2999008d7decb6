package store

import "github.com/jun/gophnote/internal/edam"

// UserStore exposes the account methods of the user store endpoint.
type UserStore struct {
	*Client
}

// NewUserStore wraps c.
func NewUserStore(c *Client) *UserStore {
	return &UserStore{Client: c}
}

func (s *UserStore) GetUser(cb Callback[*edam.User]) *Pending {
	return invoke(s.Client, edam.GetUser, nil, asStruct(edam.UserFromStruct), cb)
}

func (s *UserStore) AuthenticateToBusiness(cb Callback[*edam.AuthenticationResult]) *Pending {
	return invoke(s.Client, edam.AuthenticateToBusiness, nil, asStruct(edam.AuthenticationResultFromStruct), cb)
}

func (s *UserStore) GetNoteStoreURL(cb Callback[string]) *Pending {
	return invoke(s.Client, edam.GetNoteStoreURL, nil, asString, cb)
}
