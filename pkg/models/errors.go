package models

import "github.com/pkg/errors"

// Domain errors shared by the engine and its collaborators.
// Check with errors.Is: errors.Is(err, models.ErrPreconditionNotMet)
var (
	// ErrPreconditionNotMet means a required private collection was never provisioned.
	ErrPreconditionNotMet = errors.New("precondition not met")
	// ErrInvalidInput covers out-of-range qualities and unparsable phase titles.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned by stores when a lookup has no row.
	ErrNotFound = errors.New("not found")
)
