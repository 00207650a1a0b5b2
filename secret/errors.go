package secret

import "errors"

// Sentinel errors.
var (
	ErrMissingEnv       = errors.New("secret: missing environment variable")
	ErrUnknownProvider  = errors.New("secret: provider not registered")
	ErrEmptyValue       = errors.New("secret: empty value")
	ErrInvalidReference = errors.New("secret: invalid reference")
)
