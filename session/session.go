// Package session persists agent runs so an attended run paused for
// approval can be resumed by a later process.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmuhlariholdings/hlavi-agent/config"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/executor"
)

// Run is the saved state of one ticket execution.
type Run struct {
	ID         string                     `json:"id"`
	TicketPath string                     `json:"ticket_path"`
	TicketID   string                     `json:"ticket_id"`
	Mode       executor.Mode              `json:"mode"`
	Checkpoint executor.Checkpoint        `json:"checkpoint"`
	Results    []executor.ExecutionResult `json:"results"`
	Error      string                     `json:"error,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
	path       string
}

// Dir returns the directory runs are stored in under a project root.
func Dir(root string) string {
	return filepath.Join(root, config.Dir, "runs")
}

// New creates a run with a fresh ID. Nothing is written until Save.
func New(dir, ticketPath, ticketID string, mode executor.Mode) *Run {
	id := uuid.NewString()
	now := time.Now().UTC()
	return &Run{
		ID:         id,
		TicketPath: ticketPath,
		TicketID:   ticketID,
		Mode:       mode,
		Checkpoint: executor.Checkpoint{State: executor.Idle},
		CreatedAt:  now,
		UpdatedAt:  now,
		path:       runPath(dir, id),
	}
}

// Load loads an existing run from disk.
func Load(dir, id string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.New("invalid run id %q", id)
	}
	path := runPath(dir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read run file %s", path)
	}

	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(err, "could not parse run file %s", path)
	}
	r.path = path
	return &r, nil
}

// Latest returns the most recently updated run in dir.
func Latest(dir string) (*Run, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not list runs in %s", dir)
	}
	var runs []*Run
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		r, err := Load(dir, id)
		if err != nil {
			continue
		}
		runs = append(runs, r)
	}
	if len(runs) == 0 {
		return nil, errors.New("no runs in %s", dir)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].UpdatedAt.After(runs[j].UpdatedAt) })
	return runs[0], nil
}

// Record stores the executor's progress after a call. Results accumulate
// across calls.
func (r *Run) Record(cp executor.Checkpoint, results []executor.ExecutionResult, runErr error) {
	r.Checkpoint = cp
	r.Results = append(r.Results, results...)
	r.Error = ""
	if runErr != nil {
		r.Error = runErr.Error()
	}
	r.UpdatedAt = time.Now().UTC()
}

// Save writes the run to disk, replacing any earlier version atomically.
func (r *Run) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return errors.Wrapf(err, "could not create run directory")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize run")
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write run %s", r.ID)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to write run %s", r.ID)
	}
	return nil
}

// Path returns the file the run is saved to.
func (r *Run) Path() string { return r.path }

func runPath(dir, id string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.json", id))
}
