// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/social-search/internal/httputil"
)

// Throttle spaces calls to a shared-budget API. Callers reserve slots in
// arrival order, so no two calls start closer together than MinInterval.
type Throttle struct {
	MinInterval time.Duration

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	once    sync.Once
	limiter *rate.Limiter
}

// NewThrottle returns a Throttle with the real clock.
func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{MinInterval: minInterval}
}

func (t *Throttle) lim() *rate.Limiter {
	t.once.Do(func() {
		limit := rate.Inf
		if t.MinInterval > 0 {
			limit = rate.Every(t.MinInterval)
		}
		t.limiter = rate.NewLimiter(limit, 1)
	})
	return t.limiter
}

func (t *Throttle) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Reserve claims the next free slot and returns how long the caller must
// wait for it.
func (t *Throttle) Reserve() time.Duration {
	now := t.now()
	return t.lim().ReserveN(now, 1).DelayFrom(now)
}

// Wait blocks until the caller's slot arrives or ctx is done. A cancelled
// wait gives its slot back.
func (t *Throttle) Wait(ctx context.Context) error {
	now := t.now()
	r := t.lim().ReserveN(now, 1)
	sleep := t.Sleep
	if sleep == nil {
		sleep = httputil.SleepContext
	}
	if err := sleep(ctx, r.DelayFrom(now)); err != nil {
		r.CancelAt(t.now())
		return err
	}
	return nil
}
