package restraint

import "errors"

var (
	ErrBadConfig     = errors.New("bad config")
	ErrPartialWindow = errors.New("partial window")
)
