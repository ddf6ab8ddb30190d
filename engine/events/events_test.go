package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/types"
)

func fixedValidator() *Validator {
	v := NewValidator(nil)
	v.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return v
}

func TestValidateFlatWireForm(t *testing.T) {
	v := fixedValidator()
	ev, err := v.Validate([]byte(`{"type":"environment:meditate","sessionId":"char-1","minutes":60,"kind":"deep"}`))
	require.NoError(t, err)

	assert.Equal(t, EnvironmentMeditate, ev.Type)
	assert.Equal(t, NamespaceEnvironment, ev.Namespace)
	assert.Equal(t, "char-1", ev.SessionID)
	assert.Equal(t, v.now(), ev.Timestamp)

	p, err := Decode[*Meditate](ev)
	require.NoError(t, err)
	assert.Equal(t, 60, p.Minutes)
	assert.Equal(t, "deep", p.Kind)
}

func TestValidateAssignsULID(t *testing.T) {
	v := fixedValidator()
	ev, err := v.Validate([]byte(`{"type":"environment:breakthrough"}`))
	require.NoError(t, err)

	id, err := ulid.ParseStrict(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(v.now()), id.Time())

	ev2, err := v.Validate([]byte(`{"type":"environment:breakthrough"}`))
	require.NoError(t, err)
	assert.NotEqual(t, ev.ID, ev2.ID)
}

func TestValidateKeepsCallerID(t *testing.T) {
	ev, err := fixedValidator().Validate([]byte(`{"id":"evt-7","type":"environment:time_passed","minutes":5}`))
	require.NoError(t, err)
	assert.Equal(t, "evt-7", ev.ID)
}

func TestValidateTimestampForms(t *testing.T) {
	v := fixedValidator()
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	ev, err := v.Validate([]byte(`{"type":"environment:time_passed","minutes":1,"timestamp":"2024-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.True(t, want.Equal(ev.Timestamp))

	ev, err = v.Validate([]byte(`{"type":"environment:time_passed","minutes":1,"timestamp":` +
		jsonInt(want.UnixMilli()) + `}`))
	require.NoError(t, err)
	assert.True(t, want.Equal(ev.Timestamp))

	_, err = v.Validate([]byte(`{"type":"environment:time_passed","minutes":1,"timestamp":"yesterday"}`))
	assert.ErrorIs(t, err, ErrTimestampInvalid)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		sentinel error
	}{
		{"not json", `{type`, ErrMalformed},
		{"array", `[1,2]`, ErrMalformed},
		{"null", `null`, ErrMalformed},
		{"missing type", `{"minutes":5}`, ErrTypeRequired},
		{"blank type", `{"type":"  "}`, ErrTypeRequired},
		{"non-string type", `{"type":7}`, ErrTypeRequired},
		{"unknown type", `{"type":"combat:dance"}`, ErrTypeUnknown},
		{"unknown namespace", `{"type":"weather:rain"}`, ErrTypeUnknown},
		{"unknown field", `{"type":"environment:rest","minutes":5,"nap":true}`, ErrPayloadInvalid},
		{"wrong field type", `{"type":"environment:rest","minutes":"five"}`, ErrPayloadInvalid},
		{"zero minutes", `{"type":"environment:rest","minutes":0}`, ErrPayloadInvalid},
		{"too many minutes", `{"type":"environment:time_passed","minutes":99999}`, ErrPayloadInvalid},
		{"bad meditation kind", `{"type":"environment:meditate","minutes":5,"kind":"nap"}`, ErrPayloadInvalid},
		{"bad formation", `{"type":"environment:meditate","minutes":5,"formation":2}`, ErrPayloadInvalid},
		{"bad pace", `{"type":"movement:walk","minutes":5,"pace":"crawl"}`, ErrPayloadInvalid},
		{"travel without location", `{"type":"movement:travel","minutes":5}`, ErrPayloadInvalid},
		{"item quantity", `{"type":"inventory:item_added","itemId":"pill","quantity":0}`, ErrPayloadInvalid},
		{"damage type", `{"type":"combat:damage_taken","amount":5,"damageType":"fire"}`, ErrPayloadInvalid},
		{"attack without target", `{"type":"combat:attack","techniqueId":"palm"}`, ErrPayloadInvalid},
		{"attach tick without index", `{"type":"body:attach_tick","minutes":30}`, ErrPayloadInvalid},
		{"attach unknown kind", `{"type":"body:attach_start","partId":"left_arm","limb":{"kind":"tail","sourceId":"x"}}`, ErrPayloadInvalid},
		{"empty story update", `{"type":"environment:story_update"}`, ErrPayloadInvalid},
		{"story update changes level", `{"type":"environment:story_update","stateUpdate":{"setLevel":2}}`, ErrPayloadInvalid},
		{"story update moves", `{"type":"environment:story_update","stateUpdate":{"setLocationId":"peak"}}`, ErrPayloadInvalid},
		{"story update fills core", `{"type":"environment:story_update","stateUpdate":{"addAccumulatedQi":1000000}}`, ErrPayloadInvalid},
		{"story update replaces body", `{"type":"environment:story_update","stateUpdate":{"setBody":{"parts":[]}}}`, ErrPayloadInvalid},
		{"story update forces flush", `{"type":"environment:story_update","stateUpdate":{"addQi":1,"critical":true}}`, ErrPayloadInvalid},
		{"story update grants mastery", `{"type":"environment:story_update","stateUpdate":{"learnTechniques":[{"techniqueId":"palm","masteryProgress":50}]}}`, ErrPayloadInvalid},
		{"story update empty stack", `{"type":"environment:story_update","stateUpdate":{"setInventory":[{"itemId":"pill","quantity":0}]}}`, ErrPayloadInvalid},
	}
	v := fixedValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, fault.Is(err, fault.CodeValidation), "code = %s", fault.CodeOf(err))
		})
	}
}

func TestValidateRejectionIsDeterministic(t *testing.T) {
	inputs := []string{
		`{"type":"environment:rest","minutes":5,"nap":true}`,
		`{"type":"environment:rest","minutes":"five"}`,
		`{"type":"combat:dance"}`,
		`{type`,
	}
	for _, raw := range inputs {
		_, err1 := fixedValidator().Validate([]byte(raw))
		_, err2 := fixedValidator().Validate([]byte(raw))
		require.Error(t, err1)
		require.Error(t, err2)
		assert.Equal(t, err1.Error(), err2.Error(), raw)
	}
}

func TestValidateEventEnvelope(t *testing.T) {
	v := fixedValidator()
	ev, err := v.ValidateEvent(Envelope{
		Type:    " inventory:item_added ",
		Payload: json.RawMessage(`{"itemId":"spirit_herb","quantity":3}`),
	})
	require.NoError(t, err)
	assert.Equal(t, InventoryItemAdded, ev.Type)

	p, err := Decode[*ItemAdded](ev)
	require.NoError(t, err)
	assert.Equal(t, &ItemAdded{ItemID: "spirit_herb", Quantity: 3}, p)

	_, err = Decode[*ItemRemoved](ev)
	assert.True(t, fault.Is(err, fault.CodeInternal))
}

func TestStoryUpdateAcceptsResourceChanges(t *testing.T) {
	ev, err := fixedValidator().Validate([]byte(
		`{"type":"environment:story_update","stateUpdate":{"addQi":10,"addFatigue":-5},"timeAdvance":30}`))
	require.NoError(t, err)
	p, err := Decode[*StoryUpdate](ev)
	require.NoError(t, err)
	require.NotNil(t, p.StateUpdate)
	assert.Equal(t, types.CharacterDelta{AddQi: 10, AddFatigue: -5}, *p.StateUpdate)
	assert.Equal(t, 30, p.TimeAdvance)
}

func TestDefaultCatalogue(t *testing.T) {
	c := Default()
	assert.Len(t, c.Types(), 18)
	assert.Equal(t, []Namespace{
		NamespaceBody, NamespaceCombat, NamespaceEnvironment, NamespaceInventory, NamespaceMovement,
	}, c.Namespaces())
	for _, typ := range c.Types() {
		d, ok := c.Lookup(typ)
		require.True(t, ok)
		assert.Equal(t, NamespaceOf(typ), d.Namespace)
		assert.NotNil(t, d.New(), typ)
	}
}

func TestNewCatalogueRejectsBadDefinitions(t *testing.T) {
	_, err := NewCatalogue(def[Rest](EnvironmentRest), def[Rest](EnvironmentRest))
	assert.Error(t, err)

	_, err = NewCatalogue(Definition{Type: "combat:x"})
	assert.Error(t, err)

	_, err = NewCatalogue(Definition{Type: "", New: func() Payload { return &Rest{} }})
	assert.True(t, errors.Is(err, ErrTypeRequired))

	_, err = NewCatalogue(Definition{Type: "combat:x", Namespace: NamespaceBody, New: func() Payload { return &Rest{} }})
	assert.Error(t, err)

	c, err := NewCatalogue(Definition{Type: "weather:rain", New: func() Payload { return &Rest{} }})
	require.NoError(t, err)
	_, err = NewValidator(c).Validate([]byte(`{"type":"weather:rain","minutes":3}`))
	assert.NoError(t, err)
}
