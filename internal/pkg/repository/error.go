package repository

import "errors"

var (
	// ErrDuplicate is returned by InsertAccepted when the fingerprint
	// unique index already holds the row: the durable layer caught a
	// duplicate the in-memory set missed. Callers treat it as a dedup
	// catch, not a failure.
	ErrDuplicate = errors.New("fingerprint already accepted")
)
