package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation and rollout operations.
var (
	// ErrInvalidState indicates a state vector with invalid values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrConfiguration indicates missing or malformed trial configuration.
	ErrConfiguration = errors.New("dynamo: configuration error")

	// ErrSimulator indicates a failure from model loading, stepping or rendering.
	ErrSimulator = errors.New("dynamo: simulator error")

	// ErrPolicy indicates a policy failed or returned a malformed decision.
	ErrPolicy = errors.New("dynamo: policy error")
)

// Configf returns an error matching ErrConfiguration.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Simulatorf returns an error matching ErrSimulator.
func Simulatorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSimulator, fmt.Sprintf(format, args...))
}

// Policyf returns an error matching ErrPolicy.
func Policyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPolicy, fmt.Sprintf(format, args...))
}

// Classify wraps err with kind unless it already matches one of the
// rollout error kinds.
func Classify(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrSimulator) || errors.Is(err, ErrPolicy) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Phase names the part of a trial an error came from.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseSettle   Phase = "settle"
	PhaseRun      Phase = "run"
	PhaseEvaluate Phase = "evaluate"
	PhaseExport   Phase = "export"
)

// StepError wraps an error with the trial position it occurred at.
type StepError struct {
	Phase   Phase
	Step    int
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step %d: %v", e.Phase, e.Step, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
