package util

import "errors"

var (
	ErrHashLength = errors.New("invalid hash length, not equal 32")
)
