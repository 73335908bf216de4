package accounts

import "errors"

// Domain-level error values returned by the account service.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidEmail          = errors.New("invalid email")
	ErrWeakPassword          = errors.New("password too short")
	ErrInvalidCredentials    = errors.New("incorrect email or password")
	ErrAccountNotVerified    = errors.New("account not verified")
	ErrInvalidOTP            = errors.New("invalid or expired otp")
	ErrRegistrationForbidden = errors.New("role cannot self-register")
	ErrInvalidServiceConfig  = errors.New("invalid service config")
)
