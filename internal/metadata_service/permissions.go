package metadata_service

import "fmt"

// ParsePermissions reads an "rwx" triple such as "r-x". A bare set of letters
// like "rw" is accepted too.
func ParsePermissions(s string) (Permissions, error) {
	var p Permissions
	if len(s) == 3 {
		if (s[0] == 'r' || s[0] == '-') && (s[1] == 'w' || s[1] == '-') && (s[2] == 'x' || s[2] == '-') {
			return Permissions{Read: s[0] == 'r', Write: s[1] == 'w', Execute: s[2] == 'x'}, nil
		}
	}
	for _, c := range s {
		switch c {
		case 'r':
			p.Read = true
		case 'w':
			p.Write = true
		case 'x':
			p.Execute = true
		case '-':
		default:
			return Permissions{}, fmt.Errorf("%w: %q", ErrInvalidPermissions, s)
		}
	}
	return p, nil
}
