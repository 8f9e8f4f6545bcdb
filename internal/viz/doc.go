// Package viz draws trajectories.
//
// [Overlay] renders the candidate paths of a planning step on top of a
// camera frame, one image per planning iteration:
//
//   - background candidates (every 5th unranked index) in blue
//   - runner-ups in red
//   - the best candidate in yellow, drawn last
//
// [Canvas] is a braille pixel canvas used by [PathPreview] to show an agent
// path in the terminal.
package viz
