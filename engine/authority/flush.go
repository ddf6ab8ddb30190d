package authority

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nathoo/qicore/engine/effects"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/state"
)

// flush writes the difference between the last persisted state and the
// committed state. It runs on the session worker. On failure the session
// stays dirty and the baseline is unchanged, so the next flush retries the
// whole difference.
func (a *Authority) flush(ctx context.Context, s *session) error {
	const op = "authority.flush"
	cur := s.current()
	if cur == nil {
		return nil
	}
	ctx, span := a.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("session", s.id)))
	defer span.End()

	d := effects.Diff(s.persisted, *cur)
	if !effects.IsZero(d) {
		d.Critical = false
		if err := a.repo.SaveCharacter(ctx, s.id, d); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "save character")
			return fault.Wrap(fault.CodeStorageFailure, op, err, "save character %s", s.id)
		}
		// The character row now matches; record that before the time write
		// so a time failure does not resend the character delta.
		next := state.Clone(*cur)
		next.Time = s.persisted.Time
		s.persisted = next
	}
	if !s.timeStored || cur.Time != s.persisted.Time {
		if err := a.repo.SaveSessionTime(ctx, s.id, cur.Time); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "save session time")
			return fault.Wrap(fault.CodeStorageFailure, op, err, "save session time %s", s.id)
		}
		s.timeStored = true
	}
	s.persisted = state.Clone(*cur)
	s.dirty.Store(false)
	return nil
}

// Flush persists one session's pending changes.
func (a *Authority) Flush(ctx context.Context, sessionID string) error {
	const op = "authority.Flush"
	s := a.lookup(sessionID)
	if s == nil {
		return fault.SessionNotLoaded(op, sessionID)
	}
	err := s.do(ctx, func() error {
		if s.current() == nil {
			return fault.SessionNotLoaded(op, sessionID)
		}
		return a.flush(ctx, s)
	})
	if errors.Is(err, errStopped) {
		return fault.SessionNotLoaded(op, sessionID)
	}
	return err
}

// Dirty reports whether a session has changes not yet persisted.
func (a *Authority) Dirty(sessionID string) bool {
	s := a.lookup(sessionID)
	return s != nil && s.dirty.Load()
}

// FlushDirty flushes every dirty session in parallel. Failures are logged
// and the first one is returned; failed sessions stay dirty.
func (a *Authority) FlushDirty(ctx context.Context) error {
	a.mu.Lock()
	dirty := make([]*session, 0, len(a.sessions))
	for _, s := range a.sessions {
		if s.dirty.Load() {
			dirty = append(dirty, s)
		}
	}
	a.mu.Unlock()
	if len(dirty) == 0 {
		return nil
	}

	ctx, span := a.tracer.Start(ctx, "authority.FlushDirty",
		trace.WithAttributes(attribute.Int("sessions", len(dirty))))
	defer span.End()

	var g errgroup.Group
	g.SetLimit(a.opts.FlushParallelism)
	for _, s := range dirty {
		s := s
		g.Go(func() error {
			err := s.do(ctx, func() error { return a.flush(ctx, s) })
			if errors.Is(err, errStopped) {
				return nil
			}
			if err != nil {
				a.log.WithField("session", s.id).WithError(err).Warn("periodic flush failed")
			}
			return err
		})
	}
	err := g.Wait()
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Run flushes dirty sessions every interval until ctx is done.
func (a *Authority) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Failures were logged per session; the next tick retries.
			_ = a.FlushDirty(ctx)
		}
	}
}
