package store

import "errors"

var (
	ErrNotFound = errors.New("content record not found")
	ErrNoBackup = errors.New("backup service not configured")
)
