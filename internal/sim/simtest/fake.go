// Package simtest provides in-memory simulator fakes for engine tests.
package simtest

import (
	"fmt"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/sim"
)

// Model is a deterministic fake simulator. Every Step moves the agent by the
// current control and increments Steps, so tests can tell which state a
// reading came from.
type Model struct {
	Name     string
	NQ, NV   int
	Steps    int
	Controls []dynamo.Control
	SiteXYZ  []float64

	qpos dynamo.State
	qvel dynamo.State
	ctrl dynamo.Control

	StepErr error
	// FailAtStep makes Step fail once Steps reaches it (0 disables).
	FailAtStep int
}

func NewModel(name string, nq, nv int) *Model {
	return &Model{
		Name:    name,
		NQ:      nq,
		NV:      nv,
		qpos:    make(dynamo.State, nq),
		qvel:    make(dynamo.State, nv),
		ctrl:    dynamo.Control{0, 0},
		SiteXYZ: []float64{0, 0, 0},
	}
}

func (m *Model) Position() dynamo.State { return m.qpos.Clone() }
func (m *Model) Velocity() dynamo.State { return m.qvel.Clone() }

func (m *Model) SetPosition(q dynamo.State) error {
	if len(q) != m.NQ {
		return fmt.Errorf("%w: qpos has %d entries, model expects %d", dynamo.ErrDimensionMismatch, len(q), m.NQ)
	}
	m.qpos = q.Clone()
	return nil
}

func (m *Model) SetVelocity(v dynamo.State) error {
	if len(v) != m.NV {
		return fmt.Errorf("%w: qvel has %d entries, model expects %d", dynamo.ErrDimensionMismatch, len(v), m.NV)
	}
	m.qvel = v.Clone()
	return nil
}

func (m *Model) SetControl(u dynamo.Control) error {
	if len(u) != 2 {
		return fmt.Errorf("%w: control has %d entries", dynamo.ErrDimensionMismatch, len(u))
	}
	m.ctrl = u.Clone()
	return nil
}

func (m *Model) Step() error {
	if m.StepErr != nil {
		return m.StepErr
	}
	if m.FailAtStep > 0 && m.Steps+1 >= m.FailAtStep {
		return fmt.Errorf("fake step failure at %d", m.Steps+1)
	}
	m.Steps++
	m.Controls = append(m.Controls, m.ctrl.Clone())
	m.qpos[0] += m.ctrl[0]
	m.qpos[1] += m.ctrl[1]
	m.qvel[0] = m.ctrl[0]
	m.qvel[1] = m.ctrl[1]
	return nil
}

func (m *Model) Site(i int) ([]float64, error) {
	if i != 0 {
		return nil, fmt.Errorf("no site %d", i)
	}
	return append([]float64(nil), m.SiteXYZ...), nil
}

// Viewer renders a flat image whose first channel holds the agent x
// position (clamped to a byte) and whose second channel holds the number of
// steps the bound model has taken.
type Viewer struct {
	W, H, C   int
	Started   bool
	Finished  bool
	Loops     int
	FinishErr error

	model sim.Model
	cam   sim.Camera
	frame []byte
}

func NewViewer(w, h, c int) *Viewer {
	return &Viewer{W: w, H: h, C: c}
}

func (v *Viewer) Start() error {
	v.Started = true
	return nil
}

func (v *Viewer) SetModel(m sim.Model) error {
	v.model = m
	return nil
}

func (v *Viewer) Camera() sim.Camera     { return v.cam }
func (v *Viewer) SetCamera(c sim.Camera) { v.cam = c }

func (v *Viewer) LoopOnce() error {
	if v.model == nil {
		return fmt.Errorf("no model bound")
	}
	v.Loops++
	q := v.model.Position()
	steps := 0
	if fm, ok := v.model.(*Model); ok {
		steps = fm.Steps
	}
	v.frame = make([]byte, v.W*v.H*v.C)
	for i := 0; i < v.W*v.H; i++ {
		v.frame[i*v.C] = clampByte(q[0])
		if v.C > 1 {
			v.frame[i*v.C+1] = byte(steps)
		}
	}
	// mark the bottom row so tests can check the vertical flip
	for x := 0; x < v.W && v.C > 2; x++ {
		v.frame[x*v.C+2] = 255
	}
	return nil
}

func (v *Viewer) Image() ([]byte, int, int, error) {
	if v.frame == nil {
		return nil, 0, 0, fmt.Errorf("nothing rendered")
	}
	return append([]byte(nil), v.frame...), v.W, v.H, nil
}

func (v *Viewer) Finish() error {
	v.Finished = true
	return v.FinishErr
}

func clampByte(f float64) byte {
	switch {
	case f < 0:
		return 0
	case f > 255:
		return 255
	default:
		return byte(f)
	}
}

// Loader hands out pre-built fakes keyed by model path.
type Loader struct {
	Models  map[string]*Model
	Viewers []*Viewer
	LoadErr error
}

func (l *Loader) Load(path string) (sim.Model, error) {
	if l.LoadErr != nil {
		return nil, l.LoadErr
	}
	m, ok := l.Models[path]
	if !ok {
		return nil, fmt.Errorf("no fake model for %q", path)
	}
	return m, nil
}

func (l *Loader) NewViewer(width, height, channels int) (sim.Viewer, error) {
	v := NewViewer(width, height, channels)
	l.Viewers = append(l.Viewers, v)
	return v, nil
}
