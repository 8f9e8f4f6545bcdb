package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/integrators"
	"github.com/san-kum/lsdc/internal/sim"
	"gonum.org/v1/gonum/num/quat"
)

const (
	agentDOF   = 2
	objectDOF  = 3 // planar x, y, yaw
	objectQPos = 7 // x, y, z, qw, qx, qy, qz
	objectQVel = 6 // linear xyz, angular xyz
	markerQPos = 6 // goal xyz, reference xyz
)

// Pusher simulates a planar agent pushing disc-shaped objects. The
// integrated state is [positions..., velocities...] where positions are the
// agent (x, y) followed by (x, y, yaw) per object.
type Pusher struct {
	scene      Scene
	integrator dynamo.Integrator

	x     dynamo.State
	ctrl  dynamo.Control
	t     float64
	steps int

	objZ    []float64
	markers [markerQPos]float64
}

var (
	_ sim.Model           = (*Pusher)(nil)
	_ sim.Drawable        = (*Pusher)(nil)
	_ dynamo.System       = (*Pusher)(nil)
	_ dynamo.Configurable = (*Pusher)(nil)
)

func NewPusher(scene Scene) (*Pusher, error) {
	if err := scene.Validate(); err != nil {
		return nil, err
	}
	integ, err := integrators.ByName(scene.Integrator)
	if err != nil {
		return nil, err
	}
	p := &Pusher{
		scene:      scene,
		integrator: integ,
		ctrl:       make(dynamo.Control, agentDOF),
		objZ:       make([]float64, scene.Objects.Count),
	}
	p.x = make(dynamo.State, p.StateDim())
	return p, nil
}

func (p *Pusher) Scene() Scene { return p.scene }

func (p *Pusher) numObjects() int { return p.scene.Objects.Count }

func (p *Pusher) half() int { return agentDOF + objectDOF*p.numObjects() }

func (p *Pusher) StateDim() int   { return 2 * p.half() }
func (p *Pusher) ControlDim() int { return agentDOF }

// NQ is the length of the generalized position vector.
func (p *Pusher) NQ() int {
	n := agentDOF + objectQPos*p.numObjects()
	if p.scene.Markers {
		n += markerQPos
	}
	return n
}

// NV is the length of the generalized velocity vector.
func (p *Pusher) NV() int {
	n := agentDOF + objectQVel*p.numObjects()
	if p.scene.Markers {
		n += markerQPos
	}
	return n
}

func (p *Pusher) Position() dynamo.State {
	q := make(dynamo.State, 0, p.NQ())
	q = append(q, p.x[0], p.x[1])
	for i := 0; i < p.numObjects(); i++ {
		base := agentDOF + objectDOF*i
		yaw := p.x[base+2]
		q = append(q, p.x[base], p.x[base+1], p.objZ[i],
			math.Cos(yaw/2), 0, 0, math.Sin(yaw/2))
	}
	if p.scene.Markers {
		q = append(q, p.markers[:]...)
	}
	return q
}

func (p *Pusher) Velocity() dynamo.State {
	h := p.half()
	v := make(dynamo.State, 0, p.NV())
	v = append(v, p.x[h], p.x[h+1])
	for i := 0; i < p.numObjects(); i++ {
		base := h + agentDOF + objectDOF*i
		v = append(v, p.x[base], p.x[base+1], 0, 0, 0, p.x[base+2])
	}
	if p.scene.Markers {
		v = append(v, make([]float64, markerQPos)...)
	}
	return v
}

func (p *Pusher) SetPosition(q dynamo.State) error {
	if len(q) != p.NQ() {
		return fmt.Errorf("%w: qpos has %d entries, scene %q expects %d",
			dynamo.ErrDimensionMismatch, len(q), p.scene.Name, p.NQ())
	}
	if !q.IsValid() {
		return dynamo.ErrInvalidState
	}
	p.x[0], p.x[1] = q[0], q[1]
	for i := 0; i < p.numObjects(); i++ {
		src := agentDOF + objectQPos*i
		dst := agentDOF + objectDOF*i
		p.x[dst] = q[src]
		p.x[dst+1] = q[src+1]
		p.objZ[i] = q[src+2]
		p.x[dst+2] = Yaw(quat.Number{Real: q[src+3], Imag: q[src+4], Jmag: q[src+5], Kmag: q[src+6]})
	}
	if p.scene.Markers {
		copy(p.markers[:], q[len(q)-markerQPos:])
	}
	return nil
}

func (p *Pusher) SetVelocity(v dynamo.State) error {
	if len(v) != p.NV() {
		return fmt.Errorf("%w: qvel has %d entries, scene %q expects %d",
			dynamo.ErrDimensionMismatch, len(v), p.scene.Name, p.NV())
	}
	if !v.IsValid() {
		return dynamo.ErrInvalidState
	}
	h := p.half()
	p.x[h], p.x[h+1] = v[0], v[1]
	for i := 0; i < p.numObjects(); i++ {
		src := agentDOF + objectQVel*i
		dst := h + agentDOF + objectDOF*i
		p.x[dst] = v[src]
		p.x[dst+1] = v[src+1]
		p.x[dst+2] = v[src+5]
	}
	return nil
}

func (p *Pusher) SetControl(u dynamo.Control) error {
	if len(u) != agentDOF {
		return fmt.Errorf("%w: control has %d entries, expected %d",
			dynamo.ErrDimensionMismatch, len(u), agentDOF)
	}
	if !u.IsValid() {
		return dynamo.ErrInvalidState
	}
	copy(p.ctrl, u)
	return nil
}

func (p *Pusher) Step() error {
	next := p.integrator.Step(p, p.x, p.ctrl, p.t, p.scene.Timestep)
	if !next.IsValid() {
		return dynamo.SimError{Time: p.t, Step: p.steps, Message: dynamo.ErrInvalidState.Error()}
	}
	p.x = next
	p.t += p.scene.Timestep
	p.steps++
	return nil
}

// Site 0 sits at the center of the first object, or on the agent when the
// scene has no objects.
func (p *Pusher) Site(i int) ([]float64, error) {
	if i != 0 {
		return nil, fmt.Errorf("scene %q has no site %d", p.scene.Name, i)
	}
	if p.numObjects() == 0 {
		return []float64{p.x[0], p.x[1], 0}, nil
	}
	return []float64{p.x[agentDOF], p.x[agentDOF+1], p.objZ[0]}, nil
}

func (p *Pusher) Bodies() []sim.Body {
	bodies := make([]sim.Body, 0, 1+p.numObjects()+2)
	bodies = append(bodies, sim.Body{Kind: sim.BodyAgent, X: p.x[0], Y: p.x[1], Radius: p.scene.Agent.Radius})
	for i := 0; i < p.numObjects(); i++ {
		base := agentDOF + objectDOF*i
		bodies = append(bodies, sim.Body{
			Kind:   sim.BodyObject,
			X:      p.x[base],
			Y:      p.x[base+1],
			Yaw:    p.x[base+2],
			Radius: p.scene.Objects.Radius,
		})
	}
	if p.scene.Markers && p.scene.ShowMarkers {
		bodies = append(bodies,
			sim.Body{Kind: sim.BodyGoal, X: p.markers[0], Y: p.markers[1], Radius: 0.02},
			sim.Body{Kind: sim.BodyReference, X: p.markers[3], Y: p.markers[4], Radius: 0.02},
		)
	}
	return bodies
}

type disc struct {
	px, py, vx, vy float64
	radius, mass   float64
	fx, fy         float64
}

func (p *Pusher) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	h := p.half()
	n := p.numObjects()
	dx := make(dynamo.State, len(x))
	copy(dx[:h], x[h:])

	discs := make([]disc, 1+n)
	discs[0] = disc{px: x[0], py: x[1], vx: x[h], vy: x[h+1], radius: p.scene.Agent.Radius, mass: p.scene.Agent.Mass}
	gear := p.scene.Agent.Gear
	discs[0].fx = gear*u[0] - p.scene.Agent.Damping*x[h]
	discs[0].fy = gear*u[1] - p.scene.Agent.Damping*x[h+1]

	for i := 0; i < n; i++ {
		base := agentDOF + objectDOF*i
		d := disc{
			px: x[base], py: x[base+1],
			vx: x[h+base], vy: x[h+base+1],
			radius: p.scene.Objects.Radius,
			mass:   p.scene.Objects.Mass,
		}
		d.fx = -p.scene.Objects.Friction * d.vx
		d.fy = -p.scene.Objects.Friction * d.vy
		discs[1+i] = d
	}

	k, c := p.scene.Contact.Stiffness, p.scene.Contact.Damping
	for i := range discs {
		for j := i + 1; j < len(discs); j++ {
			p.collide(&discs[i], &discs[j], k, c)
		}
		p.wall(&discs[i], k, c)
	}

	dx[h] = discs[0].fx / discs[0].mass
	dx[h+1] = discs[0].fy / discs[0].mass
	for i := 0; i < n; i++ {
		base := agentDOF + objectDOF*i
		d := discs[1+i]
		dx[h+base] = d.fx / d.mass
		dx[h+base+1] = d.fy / d.mass
		dx[h+base+2] = -p.scene.Objects.AngularDamping * x[h+base+2] / p.scene.Objects.Inertia
	}
	return dx
}

func (p *Pusher) collide(a, b *disc, k, c float64) {
	rx, ry := b.px-a.px, b.py-a.py
	dist := math.Hypot(rx, ry)
	pen := a.radius + b.radius - dist
	if pen <= 0 || dist == 0 {
		return
	}
	nx, ny := rx/dist, ry/dist
	vn := (b.vx-a.vx)*nx + (b.vy-a.vy)*ny
	f := k*pen - c*vn
	if f <= 0 {
		return
	}
	a.fx -= f * nx
	a.fy -= f * ny
	b.fx += f * nx
	b.fy += f * ny
}

func (p *Pusher) wall(d *disc, k, c float64) {
	limit := p.scene.Arena - d.radius
	if pen := d.px - limit; pen > 0 {
		d.fx -= k*pen + c*math.Max(d.vx, 0)
	}
	if pen := -limit - d.px; pen > 0 {
		d.fx += k*pen - c*math.Min(d.vx, 0)
	}
	if pen := d.py - limit; pen > 0 {
		d.fy -= k*pen + c*math.Max(d.vy, 0)
	}
	if pen := -limit - d.py; pen > 0 {
		d.fy += k*pen - c*math.Min(d.vy, 0)
	}
}

// KineticEnergy sums translational and rotational energy of the agent and
// objects.
func (p *Pusher) KineticEnergy() float64 {
	h := p.half()
	ke := 0.5 * p.scene.Agent.Mass * (p.x[h]*p.x[h] + p.x[h+1]*p.x[h+1])
	for i := 0; i < p.numObjects(); i++ {
		base := h + agentDOF + objectDOF*i
		vx, vy, w := p.x[base], p.x[base+1], p.x[base+2]
		ke += 0.5*p.scene.Objects.Mass*(vx*vx+vy*vy) + 0.5*p.scene.Objects.Inertia*w*w
	}
	return ke
}

func (p *Pusher) GetParams() map[string]float64 {
	return map[string]float64{
		"agent_damping":     p.scene.Agent.Damping,
		"agent_gear":        p.scene.Agent.Gear,
		"object_friction":   p.scene.Objects.Friction,
		"object_mass":       p.scene.Objects.Mass,
		"contact_stiffness": p.scene.Contact.Stiffness,
		"contact_damping":   p.scene.Contact.Damping,
	}
}

func (p *Pusher) SetParam(name string, value float64) error {
	switch name {
	case "agent_damping":
		p.scene.Agent.Damping = value
	case "agent_gear":
		p.scene.Agent.Gear = value
	case "object_friction":
		p.scene.Objects.Friction = value
	case "object_mass":
		if value <= 0 {
			return fmt.Errorf("%w: object_mass must be positive", dynamo.ErrConfiguration)
		}
		p.scene.Objects.Mass = value
	case "contact_stiffness":
		p.scene.Contact.Stiffness = value
	case "contact_damping":
		p.scene.Contact.Damping = value
	default:
		return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrConfiguration, name)
	}
	return nil
}

// Yaw extracts the rotation about the vertical axis from a unit quaternion.
func Yaw(q quat.Number) float64 {
	return math.Atan2(2*(q.Real*q.Kmag+q.Imag*q.Jmag), 1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag))
}
