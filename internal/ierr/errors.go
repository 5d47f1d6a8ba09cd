package ierr

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")

	ErrMissingCredential   = errors.New("missing api key")
	ErrInvalidCredential   = errors.New("invalid api key")
	ErrExpiredCredential   = errors.New("api key expired")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrInvalidAdminKey     = errors.New("invalid admin key")
	ErrInvalidSignature    = errors.New("invalid request signature")
	ErrStorageFailure      = errors.New("api key storage failure")
	ErrMisconfiguredSecret = errors.New("secret is not configured")
)
