// Package monitoring holds the polling primitives the lifecycle managers
// use to tell "started" from "stayed up".
package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/tcsc-project/tcsc/pkg/clock"
)

type PollOptions struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Condition is probed on every poll
type Condition func(ctx context.Context) (bool, error)

// WaitFor probes cond until it holds or opts.Timeout has passed since the
// call. It returns false on timeout; probe errors and cancellation end
// the wait with that error.
func WaitFor(ctx context.Context, clk clock.Clock, opts PollOptions, cond Condition) (bool, error) {
	start := clk.Now()
	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if err := sleepWithin(ctx, clk, start, opts); err != nil {
			if errors.Is(err, errBudgetSpent) {
				return false, nil
			}
			return false, err
		}
	}
}

// HoldsFor probes cond for the whole opts.Timeout window starting now and
// returns false at the first probe where it does not hold.
func HoldsFor(ctx context.Context, clk clock.Clock, opts PollOptions, cond Condition) (bool, error) {
	start := clk.Now()
	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if err := sleepWithin(ctx, clk, start, opts); err != nil {
			if errors.Is(err, errBudgetSpent) {
				return true, nil
			}
			return false, err
		}
	}
}

var errBudgetSpent = errors.New("poll budget spent")

// sleepWithin sleeps one interval, never past start+Timeout
func sleepWithin(ctx context.Context, clk clock.Clock, start time.Time, opts PollOptions) error {
	remaining := opts.Timeout - clk.Now().Sub(start)
	if remaining <= 0 {
		return errBudgetSpent
	}
	interval := opts.Interval
	if interval <= 0 || interval > remaining {
		interval = remaining
	}
	return clock.Sleep(ctx, clk, interval)
}
