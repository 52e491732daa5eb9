package locks

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Registry hands out per-user flood limiters. A user whose limiter has no
// token available is considered to be in flood wait; delivery to them is
// deferred rather than queued up.
type Registry struct {
	mu    sync.Mutex
	users map[int64]*rate.Limiter
	limit rate.Limit
	burst int
}

func NewRegistry(limit rate.Limit, burst int) *Registry {
	return &Registry{
		users: make(map[int64]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

func (r *Registry) UserFloodLock(userID int64) *FloodLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.users[userID]
	if !ok {
		lim = rate.NewLimiter(r.limit, r.burst)
		r.users[userID] = lim
	}
	return &FloodLock{lim: lim}
}

// UserLocked reports whether the user is currently in flood wait without
// consuming a send slot.
func (r *Registry) UserLocked(userID int64) bool {
	return r.UserFloodLock(userID).Locked()
}

type FloodLock struct {
	lim *rate.Limiter
}

// Locked reports whether the user is currently in flood wait.
func (l *FloodLock) Locked() bool {
	return l.lim.Tokens() < 1
}

// Wait consumes one send slot, blocking until the limiter permits it.
func (l *FloodLock) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}
