package viz

import "github.com/san-kum/lsdc/internal/dynamo"

// PathPreview draws the agent path on a braille canvas of w x h cells. The
// view covers the square [-extent, extent]^2; the goal, when given, is
// marked with a cross.
func PathPreview(path []dynamo.Vec2, goal *dynamo.Vec2, w, h int, extent float64) string {
	c := NewCanvas(w, h)
	dw, dh := c.Dots()
	project := func(p dynamo.Vec2) (int, int) {
		x := (p[0]/extent + 1) / 2 * float64(dw-1)
		y := (1 - p[1]/extent) / 2 * float64(dh-1)
		return int(x + 0.5), int(y + 0.5)
	}

	for i := 1; i < len(path); i++ {
		x0, y0 := project(path[i-1])
		x1, y1 := project(path[i])
		c.DrawLine(x0, y0, x1, y1)
	}
	if len(path) == 1 {
		c.Set(project(path[0]))
	}
	if goal != nil {
		c.DrawCross(project(*goal))
	}
	return c.String()
}
