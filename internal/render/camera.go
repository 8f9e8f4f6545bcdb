// Package render rasterizes pushing scenes from a top-down camera. A
// [Camera] satisfies sim.Viewer for any model that implements sim.Drawable.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/sim"
)

// Palette maps body kinds to fill colors.
type Palette struct {
	Background color.Color
	Table      color.Color
	Agent      color.Color
	Object     color.Color
	Heading    color.Color
	Goal       color.Color
	Reference  color.Color
}

var DefaultPalette = Palette{
	Background: color.RGBA{40, 40, 48, 255},
	Table:      color.RGBA{92, 92, 104, 255},
	Agent:      color.RGBA{60, 120, 230, 255},
	Object:     color.RGBA{210, 70, 60, 255},
	Heading:    color.RGBA{250, 230, 200, 255},
	Goal:       color.RGBA{80, 200, 90, 255},
	Reference:  color.RGBA{240, 200, 40, 255},
}

// DefaultCamera looks straight down at the origin and shows a 1x1 table.
var DefaultCamera = sim.Camera{ID: -1, Extent: 0.5}

type Camera struct {
	width, height, channels int
	palette                 Palette

	pose     sim.Camera
	model    sim.Drawable
	dc       *gg.Context
	started  bool
	finished bool
	rendered bool
}

var _ sim.Viewer = (*Camera)(nil)

func NewCamera(width, height, channels int) (*Camera, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("camera size must be positive, got %dx%d", width, height)
	}
	if channels != 3 && channels != 4 {
		return nil, fmt.Errorf("camera supports 3 or 4 channels, got %d", channels)
	}
	return &Camera{
		width:    width,
		height:   height,
		channels: channels,
		palette:  DefaultPalette,
		pose:     DefaultCamera,
	}, nil
}

func (c *Camera) SetPalette(p Palette) { c.palette = p }

func (c *Camera) Start() error {
	if c.finished {
		return fmt.Errorf("camera already finished")
	}
	c.dc = gg.NewContext(c.width, c.height)
	c.started = true
	return nil
}

func (c *Camera) SetModel(m sim.Model) error {
	d, ok := m.(sim.Drawable)
	if !ok {
		return fmt.Errorf("model %T cannot be drawn", m)
	}
	c.model = d
	return nil
}

func (c *Camera) Camera() sim.Camera     { return c.pose }
func (c *Camera) SetCamera(p sim.Camera) { c.pose = p }

// Project maps world coordinates to pixel coordinates (origin top-left).
func (c *Camera) Project(p dynamo.Vec2) (float64, float64) {
	ext := c.pose.Extent
	if ext <= 0 {
		ext = DefaultCamera.Extent
	}
	px := (p[0]-c.pose.Center[0])/ext*float64(c.width)/2 + float64(c.width)/2
	py := float64(c.height)/2 - (p[1]-c.pose.Center[1])/ext*float64(c.height)/2
	return px, py
}

func (c *Camera) scale() float64 {
	ext := c.pose.Extent
	if ext <= 0 {
		ext = DefaultCamera.Extent
	}
	return float64(c.width) / (2 * ext)
}

func (c *Camera) LoopOnce() error {
	if !c.started || c.finished {
		return fmt.Errorf("camera not running")
	}
	if c.model == nil {
		return fmt.Errorf("camera has no model")
	}
	dc := c.dc
	dc.SetColor(c.palette.Background)
	dc.Clear()

	tx, ty := c.Project(dynamo.Vec2{-c.pose.Extent * 0.95, c.pose.Extent * 0.95})
	side := 0.95 * c.pose.Extent * c.scale() * 2
	dc.DrawRectangle(tx, ty, side, side)
	dc.SetColor(c.palette.Table)
	dc.Fill()

	s := c.scale()
	for _, b := range c.model.Bodies() {
		x, y := c.Project(dynamo.Vec2{b.X, b.Y})
		r := math.Max(b.Radius*s, 1)
		switch b.Kind {
		case sim.BodyAgent:
			dc.DrawCircle(x, y, r)
			dc.SetColor(c.palette.Agent)
			dc.Fill()
		case sim.BodyObject:
			dc.DrawCircle(x, y, r)
			dc.SetColor(c.palette.Object)
			dc.Fill()
			// yaw is counter-clockwise in world, clockwise on screen
			dc.DrawLine(x, y, x+r*math.Cos(b.Yaw), y-r*math.Sin(b.Yaw))
			dc.SetLineWidth(math.Max(r/5, 1))
			dc.SetColor(c.palette.Heading)
			dc.Stroke()
		case sim.BodyGoal:
			dc.DrawRegularPolygon(4, x, y, r*1.4, math.Pi/4)
			dc.SetColor(c.palette.Goal)
			dc.Fill()
		case sim.BodyReference:
			dc.DrawCircle(x, y, r)
			dc.SetLineWidth(math.Max(r/3, 1))
			dc.SetColor(c.palette.Reference)
			dc.Stroke()
		}
	}
	c.rendered = true
	return nil
}

// Image reads back the last frame with rows ordered bottom to top.
func (c *Camera) Image() ([]byte, int, int, error) {
	if !c.rendered {
		return nil, 0, 0, fmt.Errorf("camera has not rendered a frame")
	}
	img, ok := c.dc.Image().(*image.RGBA)
	if !ok {
		return nil, 0, 0, fmt.Errorf("unexpected surface type %T", c.dc.Image())
	}
	pix := make([]byte, c.width*c.height*c.channels)
	for row := 0; row < c.height; row++ {
		src := img.Pix[(c.height-1-row)*img.Stride:]
		dst := pix[row*c.width*c.channels:]
		for x := 0; x < c.width; x++ {
			copy(dst[x*c.channels:x*c.channels+c.channels], src[x*4:x*4+c.channels])
		}
	}
	return pix, c.width, c.height, nil
}

func (c *Camera) Finish() error {
	c.finished = true
	c.started = false
	c.dc = nil
	c.model = nil
	return nil
}
