package export

import (
	"errors"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"os"
)

// FrameDelay is the per-frame delay in 1/100 s (10 fps).
const FrameDelay = 10

var ErrNoFrames = errors.New("export: no frames to write")

// EncodeGIF quantizes frames to the Plan 9 palette with Floyd-Steinberg
// dithering and writes a looping animation.
func EncodeGIF(w io.Writer, frames []image.Image) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range frames {
		b := frame.Bounds()
		p := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
		draw.FloydSteinberg.Draw(p, p.Bounds(), frame, b.Min)
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, FrameDelay)
	}
	return gif.EncodeAll(w, &anim)
}

func WriteGIF(frames []image.Image, path string) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeGIF(f, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
