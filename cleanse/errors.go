package cleanse

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedInput means a raw value could not be interpreted at all, so the cleanser cannot continue.
// Values that are merely implausible are repaired or defaulted instead.
var ErrMalformedInput = errors.New("malformed input")

// MalformedError locates a malformed raw value.
type MalformedError struct {
	Table  string
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v row %v column %v value %q: %v", ErrMalformedInput, e.Table, e.Row, e.Column, e.Value, e.Err)
	}
	return fmt.Sprintf("%v: %v row %v column %v value %q", ErrMalformedInput, e.Table, e.Row, e.Column, e.Value)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedInput
}

func malformed(table string, row int, column string, value string, cause error) error {
	return &MalformedError{Table: table, Row: row, Column: column, Value: value, Err: cause}
}
