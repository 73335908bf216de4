package board

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every lookup miss so callers can match the family.
var ErrNotFound = errors.New("not found")

// Domain-level error values returned by the board service.
var (
	ErrUserNotFound         = fmt.Errorf("user %w", ErrNotFound)
	ErrProfileNotFound      = fmt.Errorf("profile %w", ErrNotFound)
	ErrInternshipNotFound   = fmt.Errorf("internship %w", ErrNotFound)
	ErrApplicationNotFound  = fmt.Errorf("application %w", ErrNotFound)
	ErrDuplicateApplication = errors.New("already applied to this internship")
	ErrInvalidStatus        = errors.New("invalid application status")
	ErrInvalidPage          = errors.New("invalid page")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
