package transcoder

import (
	"errors"
	"fmt"
)

// FailureMessage is shown to the user when both rounds fail.
const FailureMessage = "transcoding failed after 2 attempts"

// ErrAllRoundsExhausted is wrapped by Outcome.Err when no round produced an
// output file.
var ErrAllRoundsExhausted = errors.New(FailureMessage)

// EnvironmentError means FFmpeg could not be started at all (missing binary,
// permission denied, wrong format). It is never retried: there is no exit
// code or output to interpret.
type EnvironmentError struct {
	Executable string
	Err        error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("cannot run transcoder %q: %v", e.Executable, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// IsEnvironmentError reports whether err (or anything it wraps) is an
// EnvironmentError.
func IsEnvironmentError(err error) bool {
	var envErr *EnvironmentError
	return errors.As(err, &envErr)
}
