package poll

import "errors"

// ErrAlreadyRunning is returned by Start when the coordinators are running.
var ErrAlreadyRunning = errors.New("poll: coordinators already running")
