package pairhist

import "errors"

var (
	ErrNoSamples = errors.New("no samples")
	ErrBadShape  = errors.New("bad shape")
	ErrBadParam  = errors.New("bad param")
)
