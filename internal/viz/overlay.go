package viz

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

const DefaultCanvasSize = 480

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

var (
	ColorBest       = color.RGBA{255, 255, 0, 255}
	ColorRunnerUp   = color.RGBA{255, 0, 0, 255}
	ColorBackground = color.RGBA{0, 0, 255, 255}
	ColorLabel      = color.RGBA{255, 255, 255, 255}
)

// Overlay draws candidate bundles over camera frames.
type Overlay struct {
	Size         int
	LineWidth    float64
	MarkerRadius float64
	Labels       bool
}

func NewOverlay() *Overlay {
	return &Overlay{
		Size:         DefaultCanvasSize,
		LineWidth:    1.5,
		MarkerRadius: 3,
		Labels:       true,
	}
}

// Render returns one annotated frame per planning iteration of b.
func (o *Overlay) Render(frame image.Image, b *Bundle) ([]*image.RGBA, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	size := o.Size
	if size <= 0 {
		size = DefaultCanvasSize
	}

	fb := frame.Bounds()
	base := frame
	if fb.Dx() != size || fb.Dy() != size {
		base = imaging.Resize(frame, size, size, imaging.NearestNeighbor)
	}
	sx := float64(size) / float64(fb.Dx())
	sy := float64(size) / float64(fb.Dy())

	out := make([]*image.RGBA, 0, b.Iterations())
	for iter := 0; iter < b.Iterations(); iter++ {
		dc := gg.NewContext(size, size)
		dc.DrawImage(base, 0, 0)

		for _, layer := range []Rank{RankBackground, RankRunnerUp, RankBest} {
			for c := 0; c < b.Candidates(); c++ {
				if b.RankOf(iter, c) != layer {
					continue
				}
				o.drawPath(dc, b.Positions[c][iter], sx, sy, layerColor(layer))
			}
		}

		if o.Labels {
			dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: float64(size) / 30}))
			dc.SetColor(ColorLabel)
			dc.DrawStringAnchored(iterLabel(iter), 6, 4, 0, 1)
		}
		out = append(out, dc.Image().(*image.RGBA))
	}
	return out, nil
}

func (o *Overlay) drawPath(dc *gg.Context, path [][2]float64, sx, sy float64, c color.Color) {
	if len(path) == 0 {
		return
	}
	dc.SetColor(c)
	dc.SetLineWidth(o.LineWidth)
	for i, p := range path {
		x, y := p[1]*sx, p[0]*sy
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()
	for _, p := range path {
		dc.DrawCircle(p[1]*sx, p[0]*sy, o.MarkerRadius)
		dc.Fill()
	}
}

func layerColor(r Rank) color.Color {
	switch r {
	case RankBest:
		return ColorBest
	case RankRunnerUp:
		return ColorRunnerUp
	default:
		return ColorBackground
	}
}

func iterLabel(i int) string {
	return fmt.Sprintf("iter %d", i)
}
