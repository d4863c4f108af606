package allocator

import (
	"fmt"
	"strings"
)

type Strategy string

const (
	Contiguous Strategy = "contiguous"
	Linked     Strategy = "linked"
	Indexed    Strategy = "indexed"
	Unix       Strategy = "unix"
)

const DefaultStrategy = Contiguous

func Strategies() []Strategy {
	return []Strategy{Contiguous, Linked, Indexed, Unix}
}

func (s Strategy) Valid() bool {
	switch s {
	case Contiguous, Linked, Indexed, Unix:
		return true
	}
	return false
}

func (s Strategy) String() string { return string(s) }

func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// Describe returns a one-line explanation suitable for a strategy picker.
func (s Strategy) Describe() string {
	switch s {
	case Contiguous:
		return "one run of adjacent blocks; fast sequential reads, suffers external fragmentation"
	case Linked:
		return "any free blocks chained by next pointers; no external fragmentation, slow random access"
	case Indexed:
		return "one index block listing every data block; random access at the cost of one block"
	case Unix:
		return "12 direct pointers then single and double indirect index blocks"
	default:
		return "unknown strategy"
	}
}
