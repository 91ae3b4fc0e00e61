// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrEmailExists signals that an account with the same email
// is already registered, while ErrInvalidRefresh covers refresh tokens
// that are unknown, expired or revoked.
package repository

import "errors"

// ErrEmailExists is returned by UserRepo.Create when the email is
// already taken. Handlers should translate this into an HTTP 409
// response.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidRefresh is returned when a refresh token cannot be used.
// Handlers should translate this into an HTTP 401 response.
var ErrInvalidRefresh = errors.New("invalid refresh token")
