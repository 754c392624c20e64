package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var errBoom = errors.New("boom")

// MockIdentityProvider implements IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) GetCustomClaims(ctx context.Context, uid string) (Claims, error) {
	args := m.Called(ctx, uid)
	claims, _ := args.Get(0).(Claims)
	return claims, args.Error(1)
}

func (m *MockIdentityProvider) SetCustomClaims(ctx context.Context, uid string, claims Claims) error {
	args := m.Called(ctx, uid, claims)
	return args.Error(0)
}

// MockStatusReader implements StatusReader
type MockStatusReader struct {
	mock.Mock
}

func (m *MockStatusReader) GetSubmission(ctx context.Context, uid string) (*PendingSubmission, error) {
	args := m.Called(ctx, uid)
	record, _ := args.Get(0).(*PendingSubmission)
	return record, args.Error(1)
}

func (m *MockStatusReader) GetProfile(ctx context.Context, uid string) (*ApprovedProfile, error) {
	args := m.Called(ctx, uid)
	record, _ := args.Get(0).(*ApprovedProfile)
	return record, args.Error(1)
}

// memIdentity is an in-memory identity provider that also re-issues sessions.
type memIdentity struct {
	mu       sync.Mutex
	claims   map[string]Claims
	emails   map[string]string
	setCalls int
	failSet  error
}

func newMemIdentity() *memIdentity {
	return &memIdentity{claims: map[string]Claims{}, emails: map[string]string{}}
}

func (m *memIdentity) addUser(uid, email string, claims Claims) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails[uid] = email
	m.claims[uid] = claims.Clone()
}

func (m *memIdentity) GetCustomClaims(_ context.Context, uid string) (Claims, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	claims, ok := m.claims[uid]
	if !ok {
		return nil, NotFound("no user %s", uid)
	}
	return claims.Clone(), nil
}

func (m *memIdentity) SetCustomClaims(_ context.Context, uid string, claims Claims) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	if _, ok := m.claims[uid]; !ok {
		return NotFound("no user %s", uid)
	}
	m.setCalls++
	m.claims[uid] = claims.Clone()
	return nil
}

func (m *memIdentity) Refresh(ctx context.Context, uid string) (*Session, error) {
	claims, err := m.GetCustomClaims(ctx, uid)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Session{UID: uid, Email: m.emails[uid], Token: "token-" + uid, Claims: claims}, nil
}

func (m *memIdentity) user(uid string) *TokenUser {
	m.mu.Lock()
	email := m.emails[uid]
	m.mu.Unlock()
	return NewTokenUser(&Session{UID: uid, Email: email}, m)
}

// stubUser is a User with fixed claims or a fixed claims error.
type stubUser struct {
	uid       string
	email     string
	claims    Claims
	claimsErr error
	refreshes int
}

func (u *stubUser) UID() string   { return u.uid }
func (u *stubUser) Email() string { return u.email }

func (u *stubUser) Claims(_ context.Context, forceRefresh bool) (Claims, error) {
	if forceRefresh {
		u.refreshes++
	}
	if u.claimsErr != nil {
		return nil, u.claimsErr
	}
	return u.claims.Clone(), nil
}

type capturingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActivityEventType, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestStore(t *testing.T, opts ...StoreOption) *BunStore {
	t.Helper()

	store := NewBunStore(newTestDB(t), opts...)
	require.NoError(t, store.CreateSchema(context.Background()))
	return store
}
