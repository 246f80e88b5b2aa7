package normalize

import (
	"errors"
	"fmt"
)

// ErrParse matches every *ParseError with errors.Is
var ErrParse = errors.New("cannot parse command")

// ParseError reports a command whose quoting could not be tokenized
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse command %q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
