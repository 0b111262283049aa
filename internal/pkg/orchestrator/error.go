package orchestrator

import "errors"

// ErrTriggerPending is returned by TriggerNow when a manual cycle request
// is already queued.
var ErrTriggerPending = errors.New("a manual cycle is already pending")
