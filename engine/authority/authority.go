// Package authority is the single writer of session state. Every session
// has a FIFO operation queue drained by one worker goroutine, so operations
// on one session never interleave while different sessions run in
// parallel. Committed state is published through an atomic pointer; readers
// only ever observe committed states.
package authority

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/rng"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/store"
	"github.com/nathoo/qicore/types"
)

const tracerName = "github.com/nathoo/qicore/engine/authority"

// DefaultQueueSize is the per-session operation buffer.
const DefaultQueueSize = 64

// Options configures an Authority.
type Options struct {
	// Logger receives flush failures and lifecycle events. Defaults to the
	// logrus standard logger.
	Logger logrus.FieldLogger
	// Seed is mixed with each session id to seed the session RNG.
	Seed int64
	// QueueSize bounds each session's pending operations.
	QueueSize int
	// FlushParallelism bounds concurrent flushes in FlushDirty.
	FlushParallelism int
}

// Authority owns the in-memory state of every loaded session.
type Authority struct {
	repo   store.Repository
	log    logrus.FieldLogger
	tracer trace.Tracer
	opts   Options

	mu       sync.Mutex
	sessions map[string]*session
}

// New returns an authority backed by repo.
func New(repo store.Repository, opts Options) *Authority {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.FlushParallelism <= 0 {
		opts.FlushParallelism = 8
	}
	return &Authority{
		repo:     repo,
		log:      opts.Logger,
		tracer:   otel.Tracer(tracerName),
		opts:     opts,
		sessions: map[string]*session{},
	}
}

// sessionSeed derives a per-session RNG seed.
func (a *Authority) sessionSeed(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return a.opts.Seed ^ int64(h.Sum64())
}

func (a *Authority) lookup(id string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[id]
}

func (a *Authority) getOrCreate(id string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[id]; ok {
		return s
	}
	s := newSession(id, a.opts.QueueSize)
	a.sessions[id] = s
	go s.run()
	return s
}

// forget removes s from the session table if it is still registered.
func (a *Authority) forget(s *session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sessions[s.id] == s {
		delete(a.sessions, s.id)
	}
}

// Loaded returns the ids of loaded sessions.
func (a *Authority) Loaded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.sessions))
	for id, s := range a.sessions {
		if s.current() != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Load hydrates a session from storage. Loading an already loaded session
// returns its current state.
func (a *Authority) Load(ctx context.Context, sessionID string) (types.SessionState, error) {
	const op = "authority.Load"
	if sessionID == "" {
		return types.SessionState{}, fault.New(fault.CodeValidation, op, "session id is required")
	}
	ctx, span := a.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("session", sessionID)))
	defer span.End()

	for {
		s := a.getOrCreate(sessionID)
		var out types.SessionState
		err := s.do(ctx, func() error {
			if cur := s.current(); cur != nil {
				out = state.Clone(*cur)
				return nil
			}
			st, err := a.hydrate(ctx, s)
			if err != nil {
				s.stop()
				a.forget(s)
				return err
			}
			out = state.Clone(st)
			return nil
		})
		// The session was unloaded between lookup and execution; retry
		// against a fresh worker.
		if errors.Is(err, errStopped) {
			if ctx.Err() != nil {
				return types.SessionState{}, ctx.Err()
			}
			continue
		}
		if err != nil {
			span.RecordError(err)
			return types.SessionState{}, err
		}
		return out, nil
	}
}

// hydrate runs on the session worker.
func (a *Authority) hydrate(ctx context.Context, s *session) (types.SessionState, error) {
	const op = "authority.Load"
	rec, err := a.repo.LoadCharacter(ctx, s.id)
	if err != nil {
		return types.SessionState{}, storageErr(op, "character", s.id, err)
	}
	loc, err := a.repo.LoadLocation(ctx, rec.Character.LocationID)
	if err != nil {
		return types.SessionState{}, storageErr(op, "location", rec.Character.LocationID, err)
	}
	t, found, err := a.repo.LoadSessionTime(ctx, s.id)
	if err != nil {
		return types.SessionState{}, fault.Wrap(fault.CodeStorageFailure, op, err, "load session time")
	}
	if !found {
		t = state.DefaultStartTime()
	}

	st := state.NewSessionState(rec.Character, loc, t, rec.Inventory, rec.Techniques)
	s.rng = rng.New(a.sessionSeed(s.id))
	st.RNGSeed = s.rng.Seed()

	s.persisted = state.Clone(st)
	s.timeStored = found
	s.publish(st)
	if !found {
		// The default start time has never been written.
		s.dirty.Store(true)
	}
	a.log.WithField("session", s.id).Debug("session loaded")
	return st, nil
}

func storageErr(op, what, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fault.NotFound(op, what, id)
	}
	return fault.Wrap(fault.CodeStorageFailure, op, err, "load %s %s", what, id)
}

// Get returns a copy of the committed state. It never touches storage.
func (a *Authority) Get(sessionID string) (types.SessionState, error) {
	s := a.lookup(sessionID)
	if s == nil {
		return types.SessionState{}, fault.SessionNotLoaded("authority.Get", sessionID)
	}
	cur := s.current()
	if cur == nil {
		return types.SessionState{}, fault.SessionNotLoaded("authority.Get", sessionID)
	}
	return state.Clone(*cur), nil
}

// IsLoaded reports whether the session is loaded.
func (a *Authority) IsLoaded(sessionID string) bool {
	s := a.lookup(sessionID)
	return s != nil && s.current() != nil
}

// Unload flushes a session one last time and discards it. A failed flush
// leaves the session loaded.
func (a *Authority) Unload(ctx context.Context, sessionID string) error {
	const op = "authority.Unload"
	s := a.lookup(sessionID)
	if s == nil {
		return fault.SessionNotLoaded(op, sessionID)
	}
	err := s.do(ctx, func() error {
		if s.current() == nil {
			return fault.SessionNotLoaded(op, sessionID)
		}
		if err := a.flush(ctx, s); err != nil {
			return err
		}
		s.state.Store(nil)
		s.stop()
		a.forget(s)
		return nil
	})
	if errors.Is(err, errStopped) {
		return fault.SessionNotLoaded(op, sessionID)
	}
	if err == nil {
		a.log.WithField("session", sessionID).Debug("session unloaded")
	}
	return err
}

// Close unloads every session. It returns the joined flush failures; sessions
// whose flush failed stay loaded.
func (a *Authority) Close(ctx context.Context) error {
	a.mu.Lock()
	ids := make([]string, 0, len(a.sessions))
	for id := range a.sessions {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := a.Unload(ctx, id); err != nil && !fault.Is(err, fault.CodeSessionNotLoaded) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
