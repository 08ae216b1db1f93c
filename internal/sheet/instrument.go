// ABOUTME: Backend decorator that bounds each remote call with a timeout
// ABOUTME: Classifies failures into RemoteError and reports call latency to an Observer

package sheet

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Observer receives one notification per backend call.
type Observer interface {
	ObserveRemoteCall(op string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveRemoteCall(string, time.Duration, error) {}

// Instrumented wraps a Backend with timeouts, error classification and observation.
type Instrumented struct {
	next    Backend
	timeout time.Duration
	obs     Observer
	logger  *slog.Logger
}

// Instrument decorates next. A zero timeout leaves calls bounded only by ctx.
func Instrument(next Backend, timeout time.Duration, obs Observer, logger *slog.Logger) *Instrumented {
	if obs == nil {
		obs = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{
		next:    next,
		timeout: timeout,
		obs:     obs,
		logger:  logger.With("component", "sheet"),
	}
}

func (b *Instrumented) call(ctx context.Context, op, tab string, fn func(context.Context) error) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	b.obs.ObserveRemoteCall(op, elapsed, err)

	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTabNotFound) || IsRemote(err) {
		return err
	}

	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	b.logger.Warn("remote call failed", "op", op, "tab", tab, "timeout", timeout, "elapsed", elapsed, "error", err)
	return &RemoteError{Op: op, Tab: tab, Timeout: timeout, Err: err}
}

// ListTabs implements Backend.
func (b *Instrumented) ListTabs(ctx context.Context) ([]Tab, error) {
	var tabs []Tab
	err := b.call(ctx, "list_tabs", "", func(ctx context.Context) error {
		var err error
		tabs, err = b.next.ListTabs(ctx)
		return err
	})
	return tabs, err
}

// GetValues implements Backend.
func (b *Instrumented) GetValues(ctx context.Context, tab string, rng Range) ([][]string, error) {
	var values [][]string
	err := b.call(ctx, "get_values", tab, func(ctx context.Context) error {
		var err error
		values, err = b.next.GetValues(ctx, tab, rng)
		return err
	})
	return values, err
}

// UpdateValues implements Backend.
func (b *Instrumented) UpdateValues(ctx context.Context, tab string, rng Range, rows [][]string) error {
	return b.call(ctx, "update_values", tab, func(ctx context.Context) error {
		return b.next.UpdateValues(ctx, tab, rng, rows)
	})
}

// AppendRow implements Backend.
func (b *Instrumented) AppendRow(ctx context.Context, tab string, row []string) error {
	return b.call(ctx, "append_row", tab, func(ctx context.Context) error {
		return b.next.AppendRow(ctx, tab, row)
	})
}

// DeleteRowRange implements Backend.
func (b *Instrumented) DeleteRowRange(ctx context.Context, tabID int64, start, end int64) error {
	return b.call(ctx, "delete_rows", "", func(ctx context.Context) error {
		return b.next.DeleteRowRange(ctx, tabID, start, end)
	})
}
