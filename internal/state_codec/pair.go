package state_codec

import (
	"encoding/json"
	"fmt"
)

// pair is one map entry written as a two element JSON array, [id, value].
type pair[T any] struct {
	ID    int
	Value T
}

func (p pair[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Value})
}

func (p *pair[T]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("expected [id, value] pair, got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return fmt.Errorf("pair id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Value); err != nil {
		return fmt.Errorf("pair %d value: %w", p.ID, err)
	}
	return nil
}
