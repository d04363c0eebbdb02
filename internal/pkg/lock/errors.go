package lock

import "errors"

// ErrLockTimeout is returned when a student's lock is not acquired in time.
var ErrLockTimeout = errors.New("student lock acquisition timed out")
