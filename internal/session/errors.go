package session

import "errors"

var (
	ErrInvalidAccessCode  = errors.New("invalid access code or exam not published")
	ErrInvalidUser        = errors.New("student name and id must not be blank")
	ErrAlreadyStarted     = errors.New("session already started")
	ErrNotInSession       = errors.New("session is not in progress")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnknownEvent       = errors.New("unknown integrity event")
)
