package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// PathToSVG draws an agent path inside the square [-extent, extent]^2. The
// start is marked with a dot and the goal, when given, with a ring.
func PathToSVG(points []dynamo.Vec2, goal []float64, extent float64, size int, strokeColor string) string {
	if len(points) == 0 || extent <= 0 {
		return ""
	}
	project := func(x, y float64) (float64, float64) {
		return (x/extent + 1) / 2 * float64(size), (1 - y/extent) / 2 * float64(size)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		size, size, size, size, strokeColor))

	for i, p := range points {
		x, y := project(p[0], p[1])
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString("\"/>\n")

	sx, sy := project(points[0][0], points[0][1])
	sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>
`, sx, sy, strokeColor))
	if len(goal) == 2 {
		gx, gy := project(goal[0], goal[1])
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="6" fill="none" stroke="#00ff88" stroke-width="2"/>
`, gx, gy))
	}

	sb.WriteString("</svg>")
	return sb.String()
}
