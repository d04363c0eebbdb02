// Package lock provides per-student mutual exclusion for read-modify-write
// sequences on a student's gamification state.
package lock

import (
	"context"
	"sync"
	"time"
)

// entry is a one-slot semaphore shared by everyone waiting on a student.
type entry struct {
	sem     chan struct{}
	waiters int
}

// StudentLock serializes engine operations per student. Entries are dropped
// once nobody holds or waits on them, so the map stays bounded by the number
// of students with in-flight work.
//
// The lock is not reentrant: a holder must release it before calling another
// operation that locks the same student.
type StudentLock struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewStudentLock creates a new StudentLock.
func NewStudentLock() *StudentLock {
	return &StudentLock{entries: make(map[int64]*entry)}
}

func (l *StudentLock) acquire(studentID int64) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[studentID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[studentID] = e
	}
	e.waiters++
	return e
}

func (l *StudentLock) release(studentID int64, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.waiters--
	if e.waiters == 0 {
		delete(l.entries, studentID)
	}
}

// Lock blocks until the student's lock is held.
func (l *StudentLock) Lock(studentID int64) {
	e := l.acquire(studentID)
	e.sem <- struct{}{}
}

// Unlock releases the student's lock. Unlocking a student that is not
// locked is a no-op.
func (l *StudentLock) Unlock(studentID int64) {
	l.mu.Lock()
	e, ok := l.entries[studentID]
	l.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-e.sem:
		l.release(studentID, e)
	default:
	}
}

// TryLock acquires the lock only if it is free right now.
func (l *StudentLock) TryLock(studentID int64) bool {
	e := l.acquire(studentID)
	select {
	case e.sem <- struct{}{}:
		return true
	default:
		l.release(studentID, e)
		return false
	}
}

// LockContext waits for the lock until ctx is done or timeout elapses.
// A zero timeout waits on ctx alone.
func (l *StudentLock) LockContext(ctx context.Context, studentID int64, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e := l.acquire(studentID)
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(studentID, e)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock runs fn while holding the student's lock.
func (l *StudentLock) WithLock(studentID int64, fn func() error) error {
	l.Lock(studentID)
	defer l.Unlock(studentID)
	return fn()
}

// WithLockContext runs fn while holding the student's lock, giving up with
// ErrLockTimeout if the lock is not acquired in time.
func (l *StudentLock) WithLockContext(ctx context.Context, studentID int64, timeout time.Duration, fn func() error) error {
	if err := l.LockContext(ctx, studentID, timeout); err != nil {
		return err
	}
	defer l.Unlock(studentID)
	return fn()
}

// IsLocked reports whether someone holds the student's lock right now.
func (l *StudentLock) IsLocked(studentID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[studentID]
	return ok && len(e.sem) > 0
}

// Len returns how many students currently have lock entries.
func (l *StudentLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
