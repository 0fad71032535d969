package commands

import (
	"github.com/teranos/dirsvc/errors"
)

// Process exit codes. Scripts calling 'dirsvc query' rely on these values.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitMalformedTable  = 2
	ExitNoData          = 3
	ExitMissingArgument = 4
)

// ErrNoData is returned by 'query' when no channel matched.
var ErrNoData = errors.New("no channels matched")

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errors.ErrMalformedEnvelope):
		return ExitMalformedTable
	case errors.Is(err, ErrNoData):
		return ExitNoData
	case errors.IsMissingArgumentError(err):
		return ExitMissingArgument
	default:
		return ExitFailure
	}
}
