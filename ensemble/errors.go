package ensemble

import "errors"

var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrBadMember     = errors.New("bad member")
)
