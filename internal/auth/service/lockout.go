package service

import (
	"context"
	"encoding/json"
	"time"
)

// AttemptStore persists the whole throttle state blob under one fixed key.
type AttemptStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// AttemptState is the login-attempt throttle record. It exists in addition
// to the fixed-window rate limiter: defense in depth, not a replacement.
type AttemptState struct {
	Attempts    int   `json:"attempts"`
	WindowStart int64 `json:"windowStart"` // unix ms
	LockUntil   int64 `json:"lockUntil,omitempty"`
}

// LockoutTracker counts failed logins per email within a window and locks
// the account-side flow once the threshold is crossed.
type LockoutTracker struct {
	store       AttemptStore
	window      time.Duration
	maxAttempts int
	lockFor     time.Duration
	now         func() time.Time
}

func NewLockoutTracker(store AttemptStore) *LockoutTracker {
	return &LockoutTracker{
		store:       store,
		window:      10 * time.Minute,
		maxAttempts: 5,
		lockFor:     15 * time.Minute,
		now:         time.Now,
	}
}

// LockedUntil returns the active lock expiry for the email, zero when the
// flow is open. Storage errors degrade to "open": the tracker is advisory
// on top of the rate limiter, never the only guard.
func (t *LockoutTracker) LockedUntil(ctx context.Context, email string) time.Time {
	states := t.load(ctx)
	state, ok := states[email]
	if !ok {
		return time.Time{}
	}
	lockUntil := time.UnixMilli(state.LockUntil).UTC()
	if state.LockUntil == 0 || !lockUntil.After(t.now()) {
		return time.Time{}
	}
	return lockUntil
}

// RecordFailure registers one failed attempt and returns the lock expiry
// if this failure crossed the threshold.
func (t *LockoutTracker) RecordFailure(ctx context.Context, email string) time.Time {
	now := t.now()
	states := t.load(ctx)
	state := states[email]

	expiredLock := state.LockUntil != 0 && !time.UnixMilli(state.LockUntil).After(now)
	expiredWindow := now.Sub(time.UnixMilli(state.WindowStart)) > t.window
	if state.WindowStart == 0 || expiredLock || expiredWindow {
		state = AttemptState{WindowStart: now.UnixMilli()}
	}

	state.Attempts++
	if state.Attempts >= t.maxAttempts {
		state.LockUntil = now.Add(t.lockFor).UnixMilli()
	}

	states[email] = state
	t.save(ctx, states)

	if state.LockUntil != 0 {
		return time.UnixMilli(state.LockUntil).UTC()
	}
	return time.Time{}
}

// Clear drops the throttle state after a successful login.
func (t *LockoutTracker) Clear(ctx context.Context, email string) {
	states := t.load(ctx)
	if _, ok := states[email]; !ok {
		return
	}
	delete(states, email)
	t.save(ctx, states)
}

func (t *LockoutTracker) load(ctx context.Context) map[string]AttemptState {
	states := make(map[string]AttemptState)
	if t.store == nil {
		return states
	}
	data, err := t.store.Load(ctx)
	if err != nil || len(data) == 0 {
		return states
	}
	_ = json.Unmarshal(data, &states)
	return states
}

func (t *LockoutTracker) save(ctx context.Context, states map[string]AttemptState) {
	if t.store == nil {
		return
	}
	data, err := json.Marshal(states)
	if err != nil {
		return
	}
	_ = t.store.Save(ctx, data)
}
