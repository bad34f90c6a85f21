package actionlog

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode writes a record in its wire form.
func Encode(rec Record) ([]byte, error) {
	if rec.Actions == nil {
		rec.Actions = []Action{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode action log: %w", err)
	}
	return data, nil
}

// EncodeActions writes a bare action array, the shape returned by getActions.
func EncodeActions(actions []Action) ([]byte, error) {
	if actions == nil {
		actions = []Action{}
	}
	data, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode actions: %w", err)
	}
	return data, nil
}

// Decode accepts either a Record object or a bare action array.
func Decode(data []byte) (Record, error) {
	trimmed := bytes.TrimSpace(data)
	var rec Record
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rec.Actions); err != nil {
			return Record{}, fmt.Errorf("failed to decode actions: %w", err)
		}
	} else if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode action log: %w", err)
	}
	for i, a := range rec.Actions {
		if !a.Kind.Valid() {
			return Record{}, fmt.Errorf("action %d: %w: %q", i, ErrUnknownKind, a.Kind)
		}
	}
	return rec, nil
}
