package sandbox

import (
	"context"

	"github.com/jun/gophnote/internal/edam"
	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/wire"
)

func (s *Service) userStoreDispatcher() *rpc.Dispatcher {
	d := rpc.NewDispatcher()

	s.register(d, endpoint{method: edam.GetUser, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		if p.share != nil {
			return nil, userError(rpc.KindPermissionDenied, "authenticationToken")
		}
		return p.account.user.ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.AuthenticateToBusiness, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		biz := p.account.business
		if p.share != nil || biz == nil {
			return nil, userError(rpc.KindPermissionDenied, "authenticationToken")
		}
		token := s.issueToken()
		expires := s.now().Add(tokenLifetime)
		s.tokens[token] = &principal{account: biz, expires: expires}
		res := &edam.AuthenticationResult{
			CurrentTime:         s.now().UnixMilli(),
			AuthenticationToken: token,
			Expiration:          expires.UnixMilli(),
			User:                p.account.user,
			NoteStoreURL:        s.noteStoreURL(biz.shard),
			WebAPIURLPrefix:     s.webAPIURLPrefix(biz.shard),
		}
		return res.ToStruct(), nil
	}})

	s.register(d, endpoint{method: edam.GetNoteStoreURL, serve: func(_ context.Context, p *principal, _ wire.Struct) (any, error) {
		return s.noteStoreURL(p.account.shard), nil
	}})

	return d
}
