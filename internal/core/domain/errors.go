package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError reports a record-source problem with enough context for the
// submitter to fix the spreadsheet. Row is the 1-based sheet row; zero means
// the problem concerns the header or the whole source.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Row > 0 && e.Field != "":
		return fmt.Sprintf("row %d: column %s: %s", e.Row, e.Field, e.Reason)
	case e.Row > 0:
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("column %s: %s", e.Field, e.Reason)
	default:
		return e.Reason
	}
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
