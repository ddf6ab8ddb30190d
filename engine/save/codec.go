package save

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nathoo/qicore/types"
)

// CodecVersion is the version written by the nested-field codec.
//
//	v1: bare JSON; technique effects used "heal" for healing.
//	v2: enveloped {"v":2,"kind":...,"data":...}; "heal" renamed "healing".
const CodecVersion = 2

// Field kinds.
const (
	KindEffects    = "effects"
	KindBody       = "body"
	KindInventory  = "inventory"
	KindTechniques = "techniques"
)

type envelope struct {
	V    int             `json:"v"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// migrations upgrade a kind's payload from version n to n+1.
var migrations = map[string]map[int]func(json.RawMessage) (json.RawMessage, error){
	KindEffects: {1: renameHeal},
}

func renameHeal(raw json.RawMessage) (json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if v, ok := m["heal"]; ok {
		if _, exists := m["healing"]; !exists {
			m["healing"] = v
		}
		delete(m, "heal")
	}
	return json.Marshal(m)
}

func encode(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", kind, err)
	}
	return json.Marshal(envelope{V: CodecVersion, Kind: kind, Data: data})
}

// decode unwraps an envelope (or bare v1 JSON), migrates it to the current
// version and unmarshals it into out. Empty input leaves out untouched.
func decode(kind string, b []byte, out any) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	version, raw := 1, json.RawMessage(b)
	if b[0] == '{' {
		var env envelope
		if err := json.Unmarshal(b, &env); err == nil && env.V > 0 && env.Data != nil {
			if env.Kind != "" && env.Kind != kind {
				return fmt.Errorf("decoding %s: stored value is %s", kind, env.Kind)
			}
			version, raw = env.V, env.Data
		}
	}
	if version > CodecVersion {
		return fmt.Errorf("decoding %s: version %d is newer than supported %d", kind, version, CodecVersion)
	}
	for ; version < CodecVersion; version++ {
		if m, ok := migrations[kind][version]; ok {
			var err error
			if raw, err = m(raw); err != nil {
				return fmt.Errorf("migrating %s from v%d: %w", kind, version, err)
			}
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s: %w", kind, err)
	}
	return nil
}

// EncodeEffects encodes technique effects.
func EncodeEffects(e types.TechniqueEffects) ([]byte, error) { return encode(KindEffects, e) }

// DecodeEffects decodes technique effects of any supported version.
func DecodeEffects(b []byte) (types.TechniqueEffects, error) {
	var e types.TechniqueEffects
	err := decode(KindEffects, b, &e)
	return e, err
}

// EncodeBody encodes a body structure.
func EncodeBody(b types.BodyStructure) ([]byte, error) { return encode(KindBody, b) }

// DecodeBody decodes a body structure.
func DecodeBody(b []byte) (types.BodyStructure, error) {
	var body types.BodyStructure
	err := decode(KindBody, b, &body)
	return body, err
}

// EncodeInventory encodes an inventory.
func EncodeInventory(inv []types.InventoryItem) ([]byte, error) {
	if inv == nil {
		inv = []types.InventoryItem{}
	}
	return encode(KindInventory, inv)
}

// DecodeInventory decodes an inventory; the result is never nil.
func DecodeInventory(b []byte) ([]types.InventoryItem, error) {
	inv := []types.InventoryItem{}
	err := decode(KindInventory, b, &inv)
	if inv == nil {
		inv = []types.InventoryItem{}
	}
	return inv, err
}

// EncodeTechniques encodes learned techniques.
func EncodeTechniques(ts []types.LearnedTechnique) ([]byte, error) {
	if ts == nil {
		ts = []types.LearnedTechnique{}
	}
	return encode(KindTechniques, ts)
}

// DecodeTechniques decodes learned techniques; the result is never nil.
func DecodeTechniques(b []byte) ([]types.LearnedTechnique, error) {
	ts := []types.LearnedTechnique{}
	err := decode(KindTechniques, b, &ts)
	if ts == nil {
		ts = []types.LearnedTechnique{}
	}
	return ts, err
}
