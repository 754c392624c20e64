package approval

import (
	"context"
	"sync"
	"time"
)

// DefaultWatchInterval is how often StatusWatcher re-resolves a user.
const DefaultWatchInterval = 30 * time.Second

// StatusWatcher polls the resolver and emits approval status changes.
type StatusWatcher struct {
	resolver *Resolver
	interval time.Duration
}

func NewStatusWatcher(resolver *Resolver, interval time.Duration) *StatusWatcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &StatusWatcher{resolver: resolver, interval: interval}
}

// Subscription delivers approval status changes until closed.
type Subscription struct {
	updates chan ApprovalStatus
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Updates emits the first resolved status and then every change.
func (s *Subscription) Updates() <-chan ApprovalStatus {
	return s.updates
}

// Close unsubscribes and waits for the polling goroutine to stop.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Watch starts polling for user. Cancelling ctx has the same effect as Close.
func (w *StatusWatcher) Watch(ctx context.Context, user User) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		updates: make(chan ApprovalStatus, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go w.run(ctx, user, sub)
	return sub
}

func (w *StatusWatcher) run(ctx context.Context, user User, sub *Subscription) {
	defer close(sub.done)
	defer close(sub.updates)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last *ApprovalStatus
	for {
		status := w.resolver.Resolve(ctx, user)
		if ctx.Err() != nil {
			return
		}

		if last == nil || !last.Equal(status) {
			select {
			case sub.updates <- status:
				last = &status
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
