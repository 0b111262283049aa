package config

import "errors"

var (
	// ErrNoKeywords is returned when the keyword list is empty
	ErrNoKeywords = errors.New("no keywords configured")
	// ErrInvalidRange is returned when a numeric setting or a min/max pair is out of bounds
	ErrInvalidRange = errors.New("invalid range")
	// ErrInvalidThreshold is returned when a score threshold cannot be used
	ErrInvalidThreshold = errors.New("invalid threshold")
	// ErrInvalidActiveWindow is returned when the active-hours window cannot be resolved
	ErrInvalidActiveWindow = errors.New("invalid active window")
	// ErrUnknownFlag is returned by SetFlags for a flag that is not runtime-adjustable
	ErrUnknownFlag = errors.New("unknown runtime flag")
)
