package vault

import (
	"context"
	"log/slog"
	"time"

	"github.com/congo-pay/sharevault/internal/events"
)

type frameKey struct{}

// frame is the state of the outermost call holding the vault lock. Re-entrant
// calls share it.
type frame struct {
	svc     *Service
	undo    []func(ctx context.Context) error
	pending []events.Record
}

// mark records how far the frame had progressed when a call started, so a
// failing call can revert only its own effects.
type mark struct {
	undo     int
	pending  int
	snapshot int
}

func (f *frame) record(undo func(ctx context.Context) error) {
	f.undo = append(f.undo, undo)
}

func (f *frame) emit(rec events.Record) {
	f.pending = append(f.pending, rec)
}

func (s *Service) mark(ctx context.Context, f *frame) mark {
	return mark{undo: len(f.undo), pending: len(f.pending), snapshot: s.custody.Snapshot(ctx)}
}

// revert undoes, newest first, every effect recorded after m. Compensation
// failures are logged; there is nothing left to roll back to.
func (s *Service) revert(ctx context.Context, f *frame, m mark) {
	ctx = context.WithoutCancel(ctx)
	for len(f.undo) > m.undo {
		last := len(f.undo) - 1
		if err := f.undo[last](ctx); err != nil {
			s.logger.Error("vault rollback step failed", slog.Any("error", err))
		}
		f.undo = f.undo[:last]
	}
	if err := s.custody.RevertToSnapshot(ctx, m.snapshot); err != nil {
		s.logger.Error("custody rollback failed", slog.Any("error", err))
	}
	f.pending = f.pending[:m.pending]
}

// enter joins the caller's frame when re-entering. Otherwise it takes the vault
// lock, opens a custody session held for the whole call and starts a new
// frame. The returned func releases both.
func (s *Service) enter(ctx context.Context) (context.Context, *frame, func(), error) {
	if f, ok := ctx.Value(frameKey{}).(*frame); ok && f.svc == s {
		return ctx, f, nil, nil
	}
	if err := s.lock(ctx); err != nil {
		return ctx, nil, nil, err
	}
	ctx, end := s.custody.Begin(ctx)
	f := &frame{svc: s}
	return context.WithValue(ctx, frameKey{}, f), f, func() {
		end()
		s.mu.Unlock()
	}, nil
}

// lock takes the vault lock. While a push hook runs the lock may be held by
// the very call that invoked the hook, so waiting is bounded by ReentryWait.
func (s *Service) lock(ctx context.Context) error {
	if s.mu.TryLock() {
		return nil
	}
	if !s.custody.InCallback() {
		s.mu.Lock()
		return nil
	}

	deadline := time.NewTimer(s.opts.ReentryWait)
	defer deadline.Stop()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrDetachedReentry
		case <-tick.C:
		}
		if s.mu.TryLock() {
			return nil
		}
		if !s.custody.InCallback() {
			s.mu.Lock()
			return nil
		}
	}
}

// atomically runs fn as one all-or-nothing call. Events buffered by the
// outermost frame are delivered once it commits.
func (s *Service) atomically(ctx context.Context, op string, fn func(ctx context.Context, f *frame) error) error {
	ctx, f, release, err := s.enter(ctx)
	if err != nil {
		s.logger.Warn("vault call refused", slog.String("op", op), slog.Any("error", err))
		return err
	}
	outer := release != nil
	if outer {
		defer release()
	}

	m := s.mark(ctx, f)
	if err := fn(ctx, f); err != nil {
		s.revert(ctx, f, m)
		s.logger.Warn("vault call reverted", slog.String("op", op), slog.Bool("reentrant", !outer), slog.Any("error", err))
		return err
	}

	if outer && len(f.pending) > 0 && s.emitter != nil {
		if err := s.emitter.Emit(ctx, f.pending...); err != nil {
			s.logger.Error("vault event delivery failed", slog.String("op", op), slog.Any("error", err))
		}
	}
	return nil
}

// read runs fn under the vault lock (or inside the caller's frame).
func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, _, release, err := s.enter(ctx)
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}
	return fn(ctx)
}
