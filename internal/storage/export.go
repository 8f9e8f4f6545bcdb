package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/rollout"
)

// ExportData is the JSON form of a stored run without its frames.
type ExportData struct {
	Run     RunMetadata        `json:"run"`
	Steps   int                `json:"steps"`
	X       []dynamo.Vec2      `json:"x"`
	Xdot    []dynamo.Vec2      `json:"xdot"`
	U       []dynamo.Control   `json:"u"`
	Metrics map[string]float64 `json:"metrics"`
}

func ExportJSON(w io.Writer, meta *RunMetadata, traj *rollout.Trajectory) error {
	data := ExportData{
		Run:     *meta,
		Steps:   traj.Len(),
		X:       traj.X,
		Xdot:    traj.Xdot,
		U:       traj.U,
		Metrics: traj.Metrics,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
