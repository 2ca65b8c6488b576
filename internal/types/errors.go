package types

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidParams = errors.New("invalid archive request")
	ErrConfiguration = errors.New("invalid configuration")

	ErrInvalidBackend = errors.New("invalid backend")
	ErrStore          = errors.New("store read/write error")
	ErrLockLost       = errors.New("archiving lock was not held at release")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}

// StoreErr wraps a persistence failure so callers can match it with errors.Is(err, ErrStore).
// A nil inner error stays nil.
func StoreErr(innerErr error, msgTemplate string, args ...any) error {
	if innerErr == nil {
		return nil
	}
	if errors.Is(innerErr, ErrStore) {
		return innerErr
	}
	return Err(ErrStore, innerErr, msgTemplate, args...)
}
