package epidemic

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is wrapped by every input validation failure. It is
// not recoverable: the caller must fix the inputs.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrDegenerateResult is the sentinel Diagnostic values unwrap to. It marks
// an averaged trajectory that is suspicious but still valid; it is never
// returned as an operation's error.
var ErrDegenerateResult = errors.New("degenerate result")

// DiagnosticKind classifies a degenerate averaged trajectory.
type DiagnosticKind string

const (
	// DiagnosticZeroRepeats means no realizations were run; the average is
	// all zeros by construction.
	DiagnosticZeroRepeats DiagnosticKind = "zero_repeats"

	// DiagnosticNoInfections means no infected node was observed after the
	// transient in any realization. Usually beta is below the epidemic
	// threshold for the given mu and topology.
	DiagnosticNoInfections DiagnosticKind = "no_infections"
)

// Diagnostic records a degenerate averaged trajectory for one (beta, mu) cell.
type Diagnostic struct {
	Kind DiagnosticKind `json:"kind"`
	Beta float64        `json:"beta"`
	Mu   float64        `json:"mu"`
}

func (d Diagnostic) Error() string {
	switch d.Kind {
	case DiagnosticZeroRepeats:
		return fmt.Sprintf("no repetitions were run (beta=%v, mu=%v)", d.Beta, d.Mu)
	case DiagnosticNoInfections:
		return fmt.Sprintf("no infections recorded after the transient, check initial conditions and parameters (beta=%v, mu=%v)", d.Beta, d.Mu)
	default:
		return fmt.Sprintf("degenerate result %q (beta=%v, mu=%v)", d.Kind, d.Beta, d.Mu)
	}
}

// Unwrap lets errors.Is(d, ErrDegenerateResult) match.
func (d Diagnostic) Unwrap() error {
	return ErrDegenerateResult
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidParameter}, args...)...)
}
