// Package dynamo provides the value types shared by the rollout engine and
// the simulators it drives.
//
// The package defines:
//
//   - [State]: generalized position or velocity vector
//   - [Control]: actuator command vector
//   - [Vec2]: planar slice of a state (agent position or velocity)
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [Metric] and [Observer]: per-step hooks used by the rollout loop
//
// # Errors
//
// Every failure surfaced by a trial is classified as one of
// [ErrConfiguration], [ErrSimulator] or [ErrPolicy]. Errors raised inside the
// control loop are wrapped in a [StepError] carrying the phase and timestep,
// and still match the sentinel with errors.Is.
//
// # Thread Safety
//
// None of the types here synchronize. A simulator and the trajectory built
// from it belong to exactly one rollout at a time.
package dynamo
