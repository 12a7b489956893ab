package service

import "errors"

var (
	// ErrNotFound is returned when no entry matches the caller's scope.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner is returned alongside ErrNotFound when the entry exists but
	// belongs to someone else.
	ErrNotOwner = errors.New("is not yours")
	// ErrNoAuth is returned when an operation needs the superuser role.
	ErrNoAuth = errors.New("no auth")
	// ErrWorkerLaunch marks runs whose worker process never started.
	ErrWorkerLaunch = errors.New("worker launch failed")
)
