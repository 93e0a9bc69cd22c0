package cli

import (
	"errors"

	"github.com/codeready-toolchain/strands/pkg/config"
	"github.com/codeready-toolchain/strands/pkg/faults"
)

// Process exit codes.
const (
	exitOK       = 0
	exitConfig   = 1
	exitRuntime  = 2
	exitUpstream = 3
)

// codedError pins a command error to a specific exit code, overriding
// the kind-based mapping.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

// exitError wraps err so ExitCode resolves it to the given code.
func exitError(code int, err error) error {
	return &codedError{code: code, err: err}
}

// ExitCode maps a command error to the process exit code: 0 success,
// 1 configuration or input error, 2 runtime error, 3 upstream
// unavailable.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrInvalidYAML) ||
		errors.Is(err, config.ErrValidationFailed) {
		return exitConfig
	}
	switch faults.KindOf(err) {
	case faults.KindValidationFailed:
		return exitConfig
	case faults.KindUpstreamUnavailable, faults.KindCircuitOpen, faults.KindNoProviderAvailable:
		return exitUpstream
	}
	return exitRuntime
}
