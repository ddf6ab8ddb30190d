// Package dispatch routes validated events to the handler of their
// namespace and packages the outcome as an EventResult.
package dispatch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/handlers"
	"github.com/nathoo/qicore/types"
)

const tracerName = "github.com/nathoo/qicore/engine/dispatch"

// Context carries what the caller knows about the event beyond its body.
// A non-empty SessionID overrides the event's own.
type Context struct {
	SessionID string
}

// Dispatcher maps namespaces to handlers. It is safe for concurrent use
// once built; Register must not race with Process.
type Dispatcher struct {
	env      *handlers.Env
	handlers map[events.Namespace]handlers.Handler
	log      logrus.FieldLogger
	tracer   trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithHandlers replaces the default handler table.
func WithHandlers(h map[events.Namespace]handlers.Handler) Option {
	return func(d *Dispatcher) { d.handlers = h }
}

// New returns a dispatcher with a handler for every default namespace.
func New(env *handlers.Env, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		env:      env,
		handlers: handlers.All(),
		log:      logrus.StandardLogger(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Register installs or replaces the handler of a namespace.
func (d *Dispatcher) Register(ns events.Namespace, h handlers.Handler) {
	d.handlers[ns] = h
}

// Process runs one event. Every failure is reported in the result, never
// as a Go error. A handler that committed a change but could not persist it
// yields a failed result that still carries the change.
func (d *Dispatcher) Process(ctx context.Context, ev events.Event, c Context) types.EventResult {
	const op = "dispatch.Process"
	sessionID := c.SessionID
	if sessionID == "" {
		sessionID = ev.SessionID
	}
	ns := ev.Namespace
	if ns == "" {
		ns = events.NamespaceOf(ev.Type)
	}

	ctx, span := d.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("session", sessionID),
		attribute.String("event.type", string(ev.Type)),
		attribute.String("event.id", ev.ID),
	))
	defer span.End()
	log := d.log.WithFields(logrus.Fields{"session": sessionID, "event": ev.ID, "type": ev.Type})
	start := time.Now()

	h, ok := d.handlers[ns]
	if !ok {
		err := fault.New(fault.CodeValidation, op, "no handler for namespace %q", ns)
		return d.fail(span, log, ev, handlers.Outcome{}, err)
	}
	if !d.env.Auth.IsLoaded(sessionID) {
		return d.fail(span, log, ev, handlers.Outcome{}, fault.SessionNotLoaded(op, sessionID))
	}

	out, err := h(ctx, d.env, handlers.Request{SessionID: sessionID, Event: ev})
	if err != nil {
		return d.fail(span, log, ev, out, err)
	}

	res := types.EventResult{
		Success:  true,
		EventID:  ev.ID,
		Changes:  out.Changes,
		Commands: out.Commands,
		Message:  out.Message,
	}
	if res.Commands == nil {
		res.Commands = []types.VisualCommand{}
	}
	log.WithFields(logrus.Fields{
		"commands": len(res.Commands),
		"elapsed":  time.Since(start),
	}).Debug("event processed")
	return res
}

func (d *Dispatcher) fail(span trace.Span, log logrus.FieldLogger, ev events.Event, out handlers.Outcome, err error) types.EventResult {
	code := fault.CodeOf(err)
	span.SetStatus(codes.Error, string(code))
	span.RecordError(err)

	res := types.EventResult{
		EventID:  ev.ID,
		Commands: []types.VisualCommand{},
		Error:    &types.ResultError{Code: string(code), Message: fault.Message(err)},
	}
	// Committed but not durable: report the change so the caller's view
	// matches the authority's.
	if code == fault.CodeStorageFailure {
		res.Changes = out.Changes
		if out.Commands != nil {
			res.Commands = out.Commands
		}
		res.Message = out.Message
	}

	entry := log.WithField("code", code)
	switch code {
	case fault.CodeStorageFailure, fault.CodeInternal:
		entry.WithError(err).Warn("event failed")
	default:
		entry.WithError(err).Debug("event rejected")
	}
	return res
}
