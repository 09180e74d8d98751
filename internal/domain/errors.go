package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEntryNotFound   = errors.New("monitored entry not found")
	ErrNoAuthToken     = errors.New("no auth token available")
)
