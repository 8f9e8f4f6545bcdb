// Package export writes rollout artifacts: animated GIFs of camera frames,
// SVG and PNG renderings of agent paths.
package export
