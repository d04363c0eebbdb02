// Package repository provides PostgreSQL data access for the progression engine.
package repository

import "errors"

// Common errors for repository operations.
var (
	ErrStudentNotFound  = errors.New("student not found")
	ErrRecordNotFound   = errors.New("gamification record not found")
	ErrLevelNotFound    = errors.New("level not found")
	ErrMissionNotFound  = errors.New("mission not found")
	ErrActivityNotFound = errors.New("activity not found")
	// ErrNoRowsAffected reports a conditional update whose guard did not match.
	ErrNoRowsAffected = errors.New("no rows affected")
)
