package errors

import "errors"

// Re-exports so callers don't need to import both this package and the
// standard library one.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
