// Package ratelimit guards two connection-level concerns the core wire
// protocol (spec.md §6) does not itself rate-limit: repeated failed login
// attempts per username, and order-submission rate per logged-in user.
// Grounded on the teacher's internal/api/middleware.SecurityMiddleware
// (ulule/limiter/v3 with an in-memory store), adapted away from gin since
// the outer transport here is a raw line-delimited TCP stream rather than
// HTTP.
package ratelimit

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Limiter rate-limits order submissions per user and locks out repeated
// failed logins.
type Limiter struct {
	orders       *limiter.Limiter
	loginFailure *gocache.Cache
	maxFailures  int
}

// New creates a Limiter allowing ordersPerMinute order submissions per
// user and locking out a username after maxLoginFailures consecutive
// failed logins within lockout.
func New(ordersPerMinute int64, maxLoginFailures int, lockout time.Duration) *Limiter {
	rate := limiter.Rate{Period: time.Minute, Limit: ordersPerMinute}
	return &Limiter{
		orders:       limiter.New(memory.NewStore(), rate),
		loginFailure: gocache.New(lockout, lockout*2),
		maxFailures:  maxLoginFailures,
	}
}

// AllowOrder reports whether user may submit another order this minute.
func (l *Limiter) AllowOrder(ctx context.Context, user string) bool {
	res, err := l.orders.Get(ctx, user)
	if err != nil {
		return true // fail open: a limiter outage must not block trading
	}
	return !res.Reached
}

// RecordLoginFailure increments username's failure count and reports
// whether the account is now locked out.
func (l *Limiter) RecordLoginFailure(username string) (lockedOut bool) {
	count := 1
	if v, ok := l.loginFailure.Get(username); ok {
		count = v.(int) + 1
	}
	l.loginFailure.SetDefault(username, count)
	return count >= l.maxFailures
}

// ClearLoginFailures resets a username's failure count after a successful
// login.
func (l *Limiter) ClearLoginFailures(username string) {
	l.loginFailure.Delete(username)
}

// IsLockedOut reports whether username is currently locked out from
// logging in.
func (l *Limiter) IsLockedOut(username string) bool {
	v, ok := l.loginFailure.Get(username)
	if !ok {
		return false
	}
	return v.(int) >= l.maxFailures
}
