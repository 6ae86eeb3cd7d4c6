package types

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrRequestNotFound = errors.New("request not found")
	ErrContactNotFound = errors.New("contact not found")
	ErrDraftNotFound   = errors.New("draft not found")
	ErrCompanyNotFound = errors.New("company not found")
)
