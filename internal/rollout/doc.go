// Package rollout runs fixed-length trials of a simulated pushing task.
//
// An [Agent] owns two simulator instances (one with goal and reference
// markers, one without) and two cameras. Each call to [Agent.Sample]
// re-initializes the scene, lets it settle under zero control and then, for
// every timestep t:
//
//  1. records the agent position and velocity at index t
//  2. renders the marker-free camera (and the large camera when enabled)
//  3. asks the policy for an action
//  4. records the action at index t and applies it for a number of substeps
//
// State and images at index t therefore show what the policy saw, never the
// result of its action.
//
// Collectors and planners are driven through the two shapes in package
// policy; which one is expected follows from the configuration. Planning
// trials end with a goal-distance score, optional candidate overlays and an
// optional GIF export.
package rollout
