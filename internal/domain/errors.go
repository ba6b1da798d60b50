package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownHotel  = errors.New("unknown hotel")
	ErrMissingColumn = errors.New("missing column")
	ErrMissingPrefix = errors.New("column without review prefix")
	ErrEmptyGroup    = errors.New("hotel group has no records")
)
