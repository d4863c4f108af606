package state_codec

import "errors"

var ErrDecodeFailed = errors.New("failed to decode filesystem state")
