package transform

import "fmt"

// ValidationError reports bad or missing transformer arguments. It is shown
// to the user immediately; no host call is made for a cycle that fails
// validation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// DataShapeError reports an input dataset that violates a structural
// invariant, such as a record lacking a key for a selected attribute. Unlike
// a normal missing value this is an inconsistency in the dataset itself; the
// cycle aborts with no partial commit.
type DataShapeError struct {
	Reason string
}

func (e *DataShapeError) Error() string { return e.Reason }

// DataShapef builds a DataShapeError from a format string.
func DataShapef(format string, args ...any) error {
	return &DataShapeError{Reason: fmt.Sprintf(format, args...)}
}
