/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Error kinds returned by the query operations. Every failure is a *QueryError
wrapping one of the sentinels, so callers can tell a missing record from a failed query.
*/

package appinfo

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCaller indicates the query was issued without a caller context
	ErrNoCaller = errors.New("no caller context")

	// ErrNotFound indicates the package, component or key does not exist
	ErrNotFound = errors.New("not found")

	// ErrNoLauncher indicates no activity matched MAIN/LAUNCHER for the package
	ErrNoLauncher = errors.New("no launcher activity")

	// ErrUnknownComponentKind indicates a meta-data lookup on an unsupported component kind
	ErrUnknownComponentKind = errors.New("unknown component kind")

	// ErrQueryFailed indicates the platform query itself failed
	ErrQueryFailed = errors.New("query failed")
)

// QueryError records the failing operation
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// opError wraps err for op. Errors that carry no known kind are marked as query failures.
func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	if !isKnownKind(err) {
		err = fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return &QueryError{Op: op, Err: err}
}

func isKnownKind(err error) bool {
	return errors.Is(err, ErrNoCaller) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoLauncher) ||
		errors.Is(err, ErrUnknownComponentKind) ||
		errors.Is(err, ErrQueryFailed)
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsQueryFailed returns true if the platform query failed
func IsQueryFailed(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}

// IsNoLauncher returns true if the error is ErrNoLauncher
func IsNoLauncher(err error) bool {
	return errors.Is(err, ErrNoLauncher)
}
