package repository

import "errors"

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrLogNotFound      = errors.New("log not found")
	ErrInvalidPath      = errors.New("invalid path segment")
)
