package chat

import "errors"

var (
	ErrDuplicateID   = errors.New("connection id already registered")
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyPaired = errors.New("connection is already paired")
	ErrUnknownEvent  = errors.New("unknown event")
)
