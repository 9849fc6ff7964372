// Package ticket defines the work items the agent plans and executes.
// Tickets belong to an external store; the agent only reads them and hands
// results back to the caller.
package ticket

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"gopkg.in/yaml.v3"
)

// AcceptanceCriterion is one condition a ticket must satisfy. ID is unique
// within its ticket.
type AcceptanceCriterion struct {
	ID          int    `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	Completed   bool   `yaml:"completed,omitempty" json:"completed,omitempty"`
}

// Ticket is a unit of work. AcceptanceCriteria are executed in slice order.
type Ticket struct {
	ID                 string                `yaml:"id" json:"id"`
	Title              string                `yaml:"title" json:"title"`
	Description        string                `yaml:"description" json:"description"`
	AcceptanceCriteria []AcceptanceCriterion `yaml:"acceptance_criteria" json:"acceptance_criteria"`
}

// Criterion returns the criterion with the given ID and its position.
func (t *Ticket) Criterion(id int) (AcceptanceCriterion, int, bool) {
	for i, ac := range t.AcceptanceCriteria {
		if ac.ID == id {
			return ac, i, true
		}
	}
	return AcceptanceCriterion{}, -1, false
}

// Descriptions returns the criterion texts in order.
func (t *Ticket) Descriptions() []string {
	out := make([]string, len(t.AcceptanceCriteria))
	for i, ac := range t.AcceptanceCriteria {
		out[i] = ac.Description
	}
	return out
}

// WithPlan returns a copy of t whose criteria are the given descriptions,
// numbered from 1. t is not modified.
func (t Ticket) WithPlan(descriptions []string) Ticket {
	out := t
	out.AcceptanceCriteria = make([]AcceptanceCriterion, len(descriptions))
	for i, d := range descriptions {
		out.AcceptanceCriteria[i] = AcceptanceCriterion{ID: i + 1, Description: d}
	}
	return out
}

// Validate checks the fields the agent depends on.
func (t *Ticket) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("ticket %q has no title", t.ID)
	}
	seen := make(map[int]bool, len(t.AcceptanceCriteria))
	for _, ac := range t.AcceptanceCriteria {
		if seen[ac.ID] {
			return errors.New("ticket %q has duplicate criterion id %d", t.ID, ac.ID)
		}
		seen[ac.ID] = true
	}
	return nil
}

// Load reads a ticket from a YAML file.
func Load(path string) (*Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read ticket file %s", path)
	}
	var t Ticket
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrapf(err, "could not parse ticket file %s", path)
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Save writes t to path as YAML.
func Save(path string, t *Ticket) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to serialize ticket: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
