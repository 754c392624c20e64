package approval

import (
	"context"
	"sync"
)

// TokenUser is a User backed by an issued session. Forced claim reads re-issue
// the token through the TokenIssuer; otherwise the cached claims are returned.
type TokenUser struct {
	mu      sync.Mutex
	session Session
	issuer  TokenIssuer
}

var _ User = (*TokenUser)(nil)

func NewTokenUser(session *Session, issuer TokenIssuer) *TokenUser {
	u := &TokenUser{issuer: issuer}
	if session != nil {
		u.session = *session
		u.session.Claims = session.Claims.Clone()
	}
	return u
}

func (u *TokenUser) UID() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session.UID
}

func (u *TokenUser) Email() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session.Email
}

// Token returns the current token string.
func (u *TokenUser) Token() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session.Token
}

func (u *TokenUser) Claims(ctx context.Context, forceRefresh bool) (Claims, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if forceRefresh && u.issuer != nil {
		next, err := u.issuer.Refresh(ctx, u.session.UID)
		if err != nil {
			return nil, err
		}
		u.session = *next
	}

	return u.session.Claims.Clone(), nil
}

// CallerUser adapts a verified Caller into a User. Refreshes go through issuer
// when one is given, otherwise the verified claims are reused.
func CallerUser(caller *Caller, issuer TokenIssuer) User {
	if caller == nil {
		return nil
	}
	return NewTokenUser(&Session{
		UID:    caller.UID,
		Email:  caller.Email,
		Claims: caller.Claims,
	}, issuer)
}
