// Package storage persists sampled trajectories as run directories:
// metadata.json, the trial configuration, states.csv and one PNG per
// observation.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/san-kum/lsdc/internal/config"
	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/rollout"
)

var ErrRunNotFound = errors.New("storage: run not found")

const (
	metadataFile = "metadata.json"
	configFile   = "config.yaml"
	statesFile   = "states.csv"
	framesDir    = "frames"
)

var stateHeader = []string{"t", "x", "y", "xdot", "ydot", "u0", "u1"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	Model      string             `json:"model"`
	Policy     string             `json:"policy"`
	Collector  bool               `json:"collector"`
	T          int                `json:"T"`
	Substeps   int                `json:"substeps"`
	NumObjects int                `json:"num_objects"`
	Seed       int64              `json:"seed"`
	GoalPoint  []float64          `json:"goal_point,omitempty"`
	Score      *float64           `json:"score,omitempty"`
	Frames     int                `json:"frames"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Save writes traj and the configuration it was sampled with to a new run
// directory and returns the run id.
func (s *Store) Save(cfg *config.Config, policyName string, traj *rollout.Trajectory) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%s", now.Format("20060102-150405"), uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, framesDir), 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Timestamp:  now,
		Model:      cfg.Model,
		Policy:     policyName,
		Collector:  cfg.Collects(),
		T:          traj.Len(),
		Substeps:   cfg.Substeps,
		NumObjects: cfg.NumObjects,
		Seed:       cfg.Seed,
		GoalPoint:  cfg.GoalPoint,
		Metrics:    traj.Metrics,
	}
	if traj.Scored {
		score := traj.Score
		meta.Score = &score
	}

	for i, img := range traj.Images {
		if img == nil {
			continue
		}
		if err := imaging.Save(img, filepath.Join(runDir, framesDir, frameName(i))); err != nil {
			return "", fmt.Errorf("writing frame %d: %w", i, err)
		}
		meta.Frames++
	}

	if err := writeStates(filepath.Join(runDir, statesFile), traj); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}
	if err := writeMetadata(filepath.Join(runDir, metadataFile), &meta); err != nil {
		return "", err
	}
	return runID, nil
}

func frameName(i int) string {
	return fmt.Sprintf("%04d.png", i)
}

func writeMetadata(path string, meta *RunMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeStates(path string, traj *rollout.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(stateHeader); err != nil {
		return err
	}
	for t := range traj.X {
		row := []string{strconv.Itoa(t)}
		row = append(row, formatFloats(traj.X[t][:]...)...)
		row = append(row, formatFloats(traj.Xdot[t][:]...)...)
		u := dynamo.Control{0, 0}
		if t < len(traj.U) && len(traj.U[t]) >= 2 {
			u = traj.U[t]
		}
		row = append(row, formatFloats(u[0], u[1])...)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloats(vals ...float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

// List returns the metadata of every run, oldest first. Directories
// without readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadConfig returns the configuration a run was sampled with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	path := filepath.Join(s.baseDir, runID, configFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return config.Load(path)
}

// LoadTrajectory reads a run back. Frames are loaded when withImages is
// set; otherwise Images is left nil.
func (s *Store) LoadTrajectory(runID string, withImages bool) (*rollout.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(stateHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %s: empty %s", runID, statesFile)
	}

	traj := &rollout.Trajectory{Metrics: meta.Metrics}
	if meta.Score != nil {
		traj.Score, traj.Scored = *meta.Score, true
	}
	for i, rec := range records[1:] {
		vals := make([]float64, len(rec)-1)
		for j, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s: row %d column %s: %w", runID, i, stateHeader[j+1], err)
			}
			vals[j] = v
		}
		traj.X = append(traj.X, dynamo.Vec2{vals[0], vals[1]})
		traj.Xdot = append(traj.Xdot, dynamo.Vec2{vals[2], vals[3]})
		traj.U = append(traj.U, dynamo.Control{vals[4], vals[5]})
	}

	if withImages {
		traj.Images = make([]*image.NRGBA, len(traj.X))
		for i := range traj.Images {
			img, err := imaging.Open(filepath.Join(s.baseDir, runID, framesDir, frameName(i)))
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("run %s: frame %d: %w", runID, i, err)
			}
			traj.Images[i] = imaging.Clone(img)
		}
	}
	return traj, nil
}

// Delete removes a run directory.
func (s *Store) Delete(runID string) error {
	dir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return err
	}
	return os.RemoveAll(dir)
}
