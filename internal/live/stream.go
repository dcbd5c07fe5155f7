package live

import (
	"context"
	"time"
)

// Stream delivers query's result now and again after every change signalled
// by src, until ctx is done. The channel is closed when the stream ends.
//
// The change channel is captured before each query runs, so a write that
// commits while the query is in flight always triggers another snapshot.
// Snapshots are therefore never older than the one before them. Several
// writes landing between two snapshots collapse into one re-query.
//
// A failed query never ends the stream: fallback converts the error into a
// value that is delivered in place of the result.
func Stream[T any](ctx context.Context, src Source, query func(context.Context) (T, error), fallback func(error) T) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)

		for {
			changed := src.Changed()

			v, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				v = fallback(err)
			}

			select {
			case out <- v:
			case <-ctx.Done():
				return
			}

			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Just delivers a single value and closes.
func Just[T any](ctx context.Context, v T) <-chan T {
	out := make(chan T, 1)
	out <- v
	close(out)
	return out
}

// Debounce forwards the latest value from in once no newer value has arrived
// for wait. When in closes, a pending value is flushed before closing.
func Debounce[T any](ctx context.Context, in <-chan T, wait time.Duration) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)

		var (
			timer   *time.Timer
			fire    <-chan time.Time
			latest  T
			pending bool
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case v, ok := <-in:
				if !ok {
					if pending {
						select {
						case out <- latest:
						case <-ctx.Done():
						}
					}
					return
				}
				latest, pending = v, true
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(wait)
				fire = timer.C

			case <-fire:
				fire = nil
				pending = false
				select {
				case out <- latest:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Map applies fn to every value from in.
func Map[T, R any](ctx context.Context, in <-chan T, fn func(T) R) <-chan R {
	out := make(chan R)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- fn(v):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Distinct drops values equal to the previously forwarded one.
func Distinct[T comparable](ctx context.Context, in <-chan T) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)

		var last T
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				if !first && v == last {
					continue
				}
				first, last = false, v
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// SwitchLatest maps every value from in to an inner stream and forwards only
// the inner stream of the most recent value. The previous inner stream's
// context is cancelled as soon as a newer value arrives, and a result it
// produced but could not yet deliver is dropped.
//
// Once in is closed the output closes as soon as the latest inner stream has
// delivered a value, or immediately if it already has or has ended.
func SwitchLatest[T, R any](ctx context.Context, in <-chan T, fn func(context.Context, T) <-chan R) <-chan R {
	out := make(chan R)

	go func() {
		defer close(out)

		cancelInner := func() {}
		defer func() { cancelInner() }()

		var (
			inner     <-chan R
			pending   R
			sendCh    chan<- R
			delivered bool
		)

		for {
			if in == nil && sendCh == nil && (inner == nil || delivered) {
				return
			}

			select {
			case <-ctx.Done():
				return

			case v, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				cancelInner()
				var innerCtx context.Context
				innerCtx, cancelInner = context.WithCancel(ctx)
				inner = fn(innerCtx, v)
				var zero R
				pending, sendCh, delivered = zero, nil, false

			case r, ok := <-inner:
				if !ok {
					inner = nil
					continue
				}
				pending, sendCh = r, out

			case sendCh <- pending:
				var zero R
				pending, sendCh, delivered = zero, nil, true
			}
		}
	}()

	return out
}
