package model

import "errors"

// Store errors shared by every Gateway implementation.
var (
	ErrNotFound    = errors.New("record not found")
	ErrEmailExists = errors.New("email already exists")
)
