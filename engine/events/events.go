// Package events defines the closed, versioned event catalogue and the
// validator that turns raw inbound events into typed events. Validation is
// all or nothing: an event either decodes into its catalogue payload and
// passes its structural checks, or it is rejected with a deterministic
// reason.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nathoo/qicore/engine/fault"
)

var (
	// ErrTypeRequired indicates a missing event type.
	ErrTypeRequired = errors.New("event type is required")
	// ErrTypeUnknown indicates a type outside the catalogue.
	ErrTypeUnknown = errors.New("event type is not in the catalogue")
	// ErrMalformed indicates input that is not a JSON object.
	ErrMalformed = errors.New("event must be a JSON object")
	// ErrPayloadInvalid indicates a payload that failed decoding or checks.
	ErrPayloadInvalid = errors.New("payload invalid")
	// ErrTimestampInvalid indicates an unparseable timestamp.
	ErrTimestampInvalid = errors.New("timestamp must be RFC 3339 or epoch milliseconds")
)

// Envelope is an inbound event before validation.
type Envelope struct {
	ID        string          `json:"id,omitempty"`
	Type      Type            `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Event is a validated event carrying its typed payload.
type Event struct {
	ID        string
	Type      Type
	Namespace Namespace
	SessionID string
	Timestamp time.Time
	Payload   Payload
}

// Validator checks envelopes against a catalogue and assigns ids.
type Validator struct {
	catalogue *Catalogue
	now       func() time.Time

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewValidator returns a validator over the given catalogue (the default
// catalogue when nil).
func NewValidator(c *Catalogue) *Validator {
	if c == nil {
		c = Default()
	}
	return &Validator{
		catalogue: c,
		now:       time.Now,
		entropy:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Catalogue returns the catalogue the validator checks against.
func (v *Validator) Catalogue() *Catalogue { return v.catalogue }

func (v *Validator) newID(t time.Time) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), v.entropy).String()
}

// envelope keys in the flat wire form; everything else is payload.
var envelopeKeys = map[string]bool{"id": true, "type": true, "sessionId": true, "timestamp": true}

// Validate parses the flat wire form {type, timestamp, sessionId, ...fields}
// and validates it.
func (v *Validator) Validate(raw []byte) (Event, error) {
	const op = "events.Validate"
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Event{}, invalid(op, ErrMalformed, "")
	}

	var env Envelope
	if t, ok := fields["type"]; ok {
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return Event{}, invalid(op, ErrTypeRequired, "type must be a string")
		}
		env.Type = Type(s)
	}
	if id, ok := fields["id"]; ok {
		if err := json.Unmarshal(id, &env.ID); err != nil {
			return Event{}, invalid(op, ErrMalformed, "id must be a string")
		}
	}
	if sid, ok := fields["sessionId"]; ok {
		if err := json.Unmarshal(sid, &env.SessionID); err != nil {
			return Event{}, invalid(op, ErrMalformed, "sessionId must be a string")
		}
	}
	if ts, ok := fields["timestamp"]; ok {
		t, err := parseTimestamp(ts)
		if err != nil {
			return Event{}, invalid(op, ErrTimestampInvalid, "")
		}
		env.Timestamp = t
	}

	payload := make(map[string]json.RawMessage, len(fields))
	for k, val := range fields {
		if !envelopeKeys[k] {
			payload[k] = val
		}
	}
	// Marshal sorts map keys, so identical input yields identical payloads.
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, invalid(op, ErrMalformed, "")
	}
	env.Payload = b
	return v.ValidateEvent(env)
}

// ValidateEvent validates an already separated envelope.
func (v *Validator) ValidateEvent(env Envelope) (Event, error) {
	const op = "events.ValidateEvent"
	env.Type = Type(strings.TrimSpace(string(env.Type)))
	if env.Type == "" {
		return Event{}, invalid(op, ErrTypeRequired, "")
	}
	def, ok := v.catalogue.Lookup(env.Type)
	if !ok {
		return Event{}, invalid(op, ErrTypeUnknown, string(env.Type))
	}

	payload := def.New()
	raw := bytes.TrimSpace(env.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return Event{}, invalid(op, ErrPayloadInvalid, fmt.Sprintf("%s: %s", env.Type, decodeReason(err)))
	}
	if err := payload.Validate(); err != nil {
		return Event{}, invalid(op, ErrPayloadInvalid, fmt.Sprintf("%s: %s", env.Type, err))
	}

	if env.Timestamp.IsZero() {
		env.Timestamp = v.now()
	}
	if env.ID == "" {
		env.ID = v.newID(env.Timestamp)
	}
	return Event{
		ID:        env.ID,
		Type:      env.Type,
		Namespace: def.Namespace,
		SessionID: strings.TrimSpace(env.SessionID),
		Timestamp: env.Timestamp,
		Payload:   payload,
	}, nil
}

// invalid builds a validation failure; errors.Is matches the sentinel.
func invalid(op string, sentinel error, detail string) error {
	if detail == "" {
		detail = "rejected"
	}
	return fault.Wrap(fault.CodeValidation, op, sentinel, "%s", detail)
}

// decodeReason strips decoder noise that would make reasons depend on
// offsets into the input.
func decodeReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %s must be %s", typeErr.Field, typeErr.Type)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "malformed JSON"
	}
	return err.Error()
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Decode returns the typed payload of an event.
func Decode[P Payload](e Event) (P, error) {
	p, ok := e.Payload.(P)
	if !ok {
		var zero P
		return zero, fault.New(fault.CodeInternal, "events.Decode", "event %s carries %T", e.Type, e.Payload)
	}
	return p, nil
}
