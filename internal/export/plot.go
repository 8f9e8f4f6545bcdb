package export

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/lsdc/internal/dynamo"
)

var (
	pathColor   = color.RGBA{R: 0, G: 120, B: 220, A: 255}
	goalColor   = color.RGBA{R: 0, G: 180, B: 90, A: 255}
	actionColor = [2]color.Color{
		color.RGBA{R: 220, G: 60, B: 50, A: 255},
		color.RGBA{R: 60, G: 60, B: 220, A: 255},
	}
)

// PathPlot saves a PNG of the agent path in world coordinates.
func PathPlot(path string, title string, points []dynamo.Vec2, goal []float64) error {
	if len(points) == 0 {
		return fmt.Errorf("export: empty path")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	pts := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		pts = append(pts, plotter.XY{X: pt[0], Y: pt[1]})
	}
	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	line.Color = pathColor
	line.Width = vg.Points(1)
	scatter.Color = pathColor
	p.Add(line, scatter)
	p.Legend.Add("agent", line, scatter)

	if len(goal) == 2 {
		g, err := plotter.NewScatter(plotter.XYs{{X: goal[0], Y: goal[1]}})
		if err != nil {
			return err
		}
		g.Color = goalColor
		g.Radius = vg.Points(5)
		p.Add(g)
		p.Legend.Add("goal", g)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

// ActionPlot saves a PNG of every action component against the timestep.
func ActionPlot(path string, title string, actions []dynamo.Control) error {
	if len(actions) == 0 {
		return fmt.Errorf("export: no actions")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "step"
	p.Y.Label.Text = "action"

	for dim := 0; dim < len(actions[0]); dim++ {
		pts := make(plotter.XYs, 0, len(actions))
		for t, u := range actions {
			if dim < len(u) {
				pts = append(pts, plotter.XY{X: float64(t), Y: u[dim]})
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = actionColor[dim%len(actionColor)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("u%d", dim), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
