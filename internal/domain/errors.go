package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidGroup is matched by both InvalidBasinError and InvalidCategoryError.
	ErrInvalidGroup = errors.New("invalid group")

	// ErrInsufficientData is matched by InsufficientDataError.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMissingColumn is matched by MissingColumnError.
	ErrMissingColumn = errors.New("missing column")

	// ErrSourceCorrupt marks input that cannot be read past; retrying the
	// read does not help.
	ErrSourceCorrupt = errors.New("corrupt input source")

	// ErrDuplicateVariant is returned when a threshold variant is merged twice
	// into the same group summary.
	ErrDuplicateVariant = errors.New("duplicate threshold variant")
)

// InvalidBasinError reports a basin code outside the closed basin set.
type InvalidBasinError struct {
	Value string
}

func (e *InvalidBasinError) Error() string {
	return fmt.Sprintf("invalid basin %q: choose one of %s", e.Value, strings.Join(basinNames(), ", "))
}

func (e *InvalidBasinError) Is(target error) bool { return target == ErrInvalidGroup }

// InvalidCategoryError reports a category or category-group label outside its
// closed set.
type InvalidCategoryError struct {
	Value string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q: choose a category 0-5 or one of %s",
		e.Value, strings.Join(categoryGroupNames(), ", "))
}

func (e *InvalidCategoryError) Is(target error) bool { return target == ErrInvalidGroup }

// InsufficientDataError reports an empty sample where at least one value is required.
type InsufficientDataError struct {
	What string
}

func (e *InsufficientDataError) Error() string {
	if e.What == "" {
		return "insufficient data: empty sample"
	}
	return fmt.Sprintf("insufficient data: %s: empty sample", e.What)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// MissingColumnError reports a required input column that is absent or empty.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }
