package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// switchingUser reports the claims most recently set on it.
type switchingUser struct {
	mu     sync.Mutex
	claims Claims
}

func (u *switchingUser) UID() string   { return "u1" }
func (u *switchingUser) Email() string { return "" }

func (u *switchingUser) Claims(context.Context, bool) (Claims, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.claims.Clone(), nil
}

func (u *switchingUser) set(claims Claims) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.claims = claims
}

func nextUpdate(t *testing.T, sub *Subscription) ApprovalStatus {
	t.Helper()
	select {
	case status, ok := <-sub.Updates():
		require.True(t, ok, "updates channel closed")
		return status
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status update")
		return ApprovalStatus{}
	}
}

func TestStatusWatcherEmitsChanges(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SetSubmission(context.Background(), &PendingSubmission{UID: "u1", Role: RoleParent, Status: SubmissionPending})
	require.NoError(t, err)

	watcher := NewStatusWatcher(NewResolver(store, WithResolverLogger(nopLogger{})), 10*time.Millisecond)
	user := &switchingUser{}

	sub := watcher.Watch(context.Background(), user)
	defer sub.Close()

	assert.Equal(t, StatusPending, nextUpdate(t, sub).Status)

	user.set(Claims{ClaimApproved: true})
	status := nextUpdate(t, sub)
	assert.True(t, status.Approved)
	assert.Equal(t, StatusApproved, status.Status)
}

func TestStatusWatcherStopsOnClose(t *testing.T) {
	watcher := NewStatusWatcher(NewResolver(newTestStore(t), WithResolverLogger(nopLogger{})), time.Millisecond)

	sub := watcher.Watch(context.Background(), &switchingUser{})
	assert.Equal(t, StatusNone, nextUpdate(t, sub).Status)

	sub.Close()
	sub.Close()

	_, ok := <-sub.Updates()
	assert.False(t, ok)
}

func TestStatusWatcherStopsOnContextCancel(t *testing.T) {
	watcher := NewStatusWatcher(NewResolver(newTestStore(t), WithResolverLogger(nopLogger{})), 0)
	ctx, cancel := context.WithCancel(context.Background())

	sub := watcher.Watch(ctx, &switchingUser{})
	nextUpdate(t, sub)
	cancel()

	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
}
