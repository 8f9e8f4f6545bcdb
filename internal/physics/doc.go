// Package physics provides the built-in pushing simulator used when no
// external engine is plugged into the rollout agent.
//
// A [Pusher] implements [sim.Model] on top of a [dynamo.System]: an actuated
// point agent and disc objects on a walled table, integrated with any
// stepper from package integrators. Generalized coordinates follow the free
// joint convention:
//
//	qpos = [agent x, y, (x, y, z, qw, qx, qy, qz) per object, goal xyz, reference xyz]
//	qvel = [agent vx, vy, (vx, vy, vz, wx, wy, wz) per object, 6 marker zeros]
//
// Marker entries are present only when the scene declares markers. They are
// placed by the caller and never move.
//
// [Loader] resolves scene files (or "builtin:<name>") to models and creates
// software cameras from package render.
package physics
