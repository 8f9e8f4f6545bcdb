package rollout

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/sim"
)

// readFrame reads the viewer's last frame, checks its size and returns it
// with a top-left origin.
func readFrame(v sim.Viewer, wantW, wantH, channels int) (*image.NRGBA, error) {
	pix, w, h, err := v.Image()
	if err != nil {
		return nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	if w != wantW || h != wantH {
		return nil, dynamo.Simulatorf("frame is %dx%d, expected %dx%d", w, h, wantW, wantH)
	}
	if len(pix) != w*h*channels {
		return nil, dynamo.Simulatorf("frame has %d bytes, expected %d", len(pix), w*h*channels)
	}
	return imaging.FlipV(fromBottomUp(pix, w, h, channels)), nil
}

// fromBottomUp wraps channel-last pixel rows as an image without reordering
// them.
func fromBottomUp(pix []byte, w, h, channels int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		src := pix[i*channels:]
		dst := img.Pix[i*4:]
		dst[0], dst[1], dst[2] = src[0], src[1], src[2]
		if channels == 4 {
			dst[3] = src[3]
		} else {
			dst[3] = 255
		}
	}
	return img
}

// captureObservations mirrors the live state into the marker-free model,
// renders it, and reads both cameras.
func (a *Agent) captureObservations() (small, large *image.NRGBA, err error) {
	if err := a.noMarkers.SetPosition(a.model.Position()); err != nil {
		return nil, nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	if err := a.noMarkers.SetVelocity(a.model.Velocity()); err != nil {
		return nil, nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	if err := a.noMarkers.Step(); err != nil {
		return nil, nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}

	if a.large != nil {
		size := a.cfg.LargeImageSize
		large, err = readFrame(a.large, size, size, a.cfg.ImageChannels)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := a.small.LoopOnce(); err != nil {
		return nil, nil, dynamo.Classify(dynamo.ErrSimulator, err)
	}
	small, err = readFrame(a.small, a.cfg.ImageWidth, a.cfg.ImageHeight, a.cfg.ImageChannels)
	if err != nil {
		return nil, nil, err
	}
	return small, large, nil
}
