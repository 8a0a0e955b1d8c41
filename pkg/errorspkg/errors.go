// Package errorspkg provides common app errors.
package errorspkg

import "errors"

var (
	// ErrInternal indicates internal server error.
	ErrInternal = errors.New("internal")
	// ErrUnavailable indicates that a downstream dependency refuses calls for now.
	ErrUnavailable = errors.New("unavailable")
)
