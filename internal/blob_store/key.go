package blob_store

import (
	"fmt"
	"strings"
)

// ValidateKey rejects keys that cannot be used as a single path element.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
