// Package policy defines the two call shapes a rollout agent drives and
// ships the collectors used for data collection.
//
// A [Collector] sees only the current state and image history and returns
// an action together with a target increment. A [Planner] additionally sees
// the full state history and the live model and returns an action with the
// candidate bundle it searched. The agent picks the shape from its
// configuration; a policy of the other kind is a configuration error.
//
// Built-in collectors:
//
//   - [Zero]: always returns a zero action
//   - [Scripted]: replays a fixed action sequence
//   - [Random]: Gaussian actions
//   - [PosController]: PD tracking of random target increments
//
// [HTTPPlanner] forwards planning requests to a remote service. No search
// algorithm is implemented in this module.
package policy
