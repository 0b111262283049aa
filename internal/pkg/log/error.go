package log

import "errors"

var (
	// ErrLoggerAlreadyInitialized is returned when Start is called twice without a Stop in between
	ErrLoggerAlreadyInitialized = errors.New("logger already initialized")
)
