package repository

import "errors"

var (
	ErrNotFound      = errors.New("repository: record not found")
	ErrPendingExists = errors.New("repository: subject already has a pending change request")
	ErrNotPending    = errors.New("repository: change request is no longer pending")
)
