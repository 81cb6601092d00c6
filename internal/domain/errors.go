package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrSizeLimitExceeded = errors.New("export size limit exceeded")
	ErrAlreadyExists     = errors.New("archive already exists")
)
