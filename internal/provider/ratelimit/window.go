package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window admits at most Limit acquisitions in any trailing Per duration.
// A Limit of zero or less disables the window.
type Window struct {
	Limit int
	Per   time.Duration

	mu     sync.Mutex
	stamps []time.Time
}

// NewWindow returns a sliding window of limit requests per minute.
func NewWindow(limit int) *Window {
	return &Window{Limit: limit, Per: time.Minute}
}

// Wait blocks until a slot is free in the window or ctx is done.
func (w *Window) Wait(ctx context.Context) error {
	if w.Limit <= 0 {
		return ctx.Err()
	}
	per := w.window()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-per)
		i := 0
		for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
			i++
		}
		w.stamps = w.stamps[i:]
		if len(w.stamps) < w.Limit {
			w.stamps = append(w.stamps, now)
			w.mu.Unlock()
			return nil
		}
		wait := w.stamps[0].Add(per).Sub(now)
		w.mu.Unlock()

		if wait <= 0 {
			wait = time.Millisecond
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InFlight returns the number of acquisitions still inside the window.
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := time.Now().Add(-w.window())
	n := 0
	for _, s := range w.stamps {
		if s.After(cutoff) {
			n++
		}
	}
	return n
}

func (w *Window) window() time.Duration {
	if w.Per <= 0 {
		return time.Minute
	}
	return w.Per
}
