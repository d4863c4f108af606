package blob_store

import (
	"errors"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{key: StateKey},
		{key: "state.v2"},
		{key: "", want: ErrInvalidKey},
		{key: ".", want: ErrInvalidKey},
		{key: "..", want: ErrInvalidKey},
		{key: "a/b", want: ErrInvalidKey},
		{key: `a\b`, want: ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := ValidateKey(tt.key); !errors.Is(err, tt.want) {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.want)
			}
		})
	}
}
