// Package sim defines the contract between the rollout engine and a physics
// simulator with cameras.
//
// A [Loader] turns a model file into a [Model] and creates [Viewer] render
// contexts. The engine owns every handle it obtains and releases viewers
// with [Viewer.Finish].
package sim

import "github.com/san-kum/lsdc/internal/dynamo"

// Model is a live simulator instance. Position and Velocity return copies
// of the generalized coordinates (qpos, qvel).
type Model interface {
	Position() dynamo.State
	Velocity() dynamo.State
	SetPosition(q dynamo.State) error
	SetVelocity(v dynamo.State) error
	SetControl(u dynamo.Control) error
	Step() error
	// Site returns the world position (x, y, z) of the i-th site.
	Site(i int) ([]float64, error)
}

// Camera is a top-down view pose. Extent is the half-width of the visible
// square in world units.
type Camera struct {
	ID     int
	Center dynamo.Vec2
	Extent float64
}

// Viewer is an offscreen render context bound to one model at a time.
//
// Image returns channel-last pixel bytes with rows ordered bottom to top,
// the convention of OpenGL read-back. Consumers flip it.
type Viewer interface {
	Start() error
	SetModel(m Model) error
	Camera() Camera
	SetCamera(c Camera)
	LoopOnce() error
	Image() (pix []byte, width, height int, err error)
	Finish() error
}

type Loader interface {
	Load(path string) (Model, error)
	NewViewer(width, height, channels int) (Viewer, error)
}

type BodyKind int

const (
	BodyAgent BodyKind = iota
	BodyObject
	BodyGoal
	BodyReference
)

func (k BodyKind) String() string {
	switch k {
	case BodyAgent:
		return "agent"
	case BodyObject:
		return "object"
	case BodyGoal:
		return "goal"
	case BodyReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Body is the render geometry of one simulated or marker body.
type Body struct {
	Kind   BodyKind
	X, Y   float64
	Yaw    float64
	Radius float64
}

// Drawable is implemented by models a software camera can rasterize.
type Drawable interface {
	Bodies() []Body
}
