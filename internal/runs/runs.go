// Package runs manages the on-disk layout of recorded simulation
// runs: one directory per run holding metadata.json and a numbered
// snapshot sequence.
package runs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type Metadata struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Integrator  string             `json:"integrator"`
	Particles   int                `json:"particles"`
	Duration    float64            `json:"duration"`
	InitialStep float64            `json:"initial_step"`
	Steps       int                `json:"steps"`
	Snapshots   []string           `json:"snapshots"`
	Integrals   map[string]float64 `json:"integrals"`
}

type Run struct {
	ID  string
	Dir string
}

// NewRun creates a fresh run directory named after the run and the
// current time.
func (s *Store) NewRun(name string) (*Run, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	dir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Run{ID: id, Dir: dir}, nil
}

// SnapshotPath names the index-th snapshot of the run.
func (r *Run) SnapshotPath(index int) string {
	return filepath.Join(r.Dir, fmt.Sprintf("state_%04d.ssf", index))
}

func (s *Store) SaveMetadata(run *Run, meta Metadata) error {
	f, err := os.Create(filepath.Join(run.Dir, "metadata.json"))
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// List returns the metadata of every recorded run, newest last.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Metadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, e.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}
