package share

import "errors"

// Validation and permission failures are expected conditions, returned as
// typed sentinels so callers can report the specific reason instead of
// conflating failure modes.
var (
	ErrNotFound         = errors.New("share link not found")
	ErrRevoked          = errors.New("share link revoked")
	ErrExpired          = errors.New("share link expired")
	ErrPasswordRequired = errors.New("password required")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrPermissionDenied = errors.New("access level does not permit this action")
	ErrUnauthorized     = errors.New("not the link owner")
	ErrAlreadyRevoked   = errors.New("share link already revoked")
)
