package executor

import (
	"fmt"
	"strings"
)

// Mode selects whether execution pauses for approval after each criterion.
type Mode int

const (
	// Attended halts in AwaitingApproval after every successful criterion.
	Attended Mode = iota
	// Unattended runs every criterion until completion or failure.
	Unattended
)

func (m Mode) String() string {
	switch m {
	case Attended:
		return "attended"
	case Unattended:
		return "unattended"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "attended" or "unattended".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "attended":
		return Attended, nil
	case "unattended":
		return Unattended, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// State is the executor's position in its lifecycle.
type State int

const (
	Idle State = iota
	Planning
	Executing
	AwaitingApproval
	Completed
	Failed
)

var stateNames = [...]string{
	Idle:             "idle",
	Planning:         "planning",
	Executing:        "executing",
	AwaitingApproval: "awaiting_approval",
	Completed:        "completed",
	Failed:           "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// ParseState parses the names produced by String.
func ParseState(s string) (State, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range stateNames {
		if name == s {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", s)
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ChangeType describes what happened to a file.
type ChangeType int

const (
	Created ChangeType = iota
	Modified
	Deleted
)

func (c ChangeType) String() string {
	switch c {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
}

func (c ChangeType) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ChangeType) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "created":
		*c = Created
	case "modified":
		*c = Modified
	case "deleted":
		*c = Deleted
	default:
		return fmt.Errorf("unknown change type %q", string(b))
	}
	return nil
}

// FileChange is a side effect reported for a criterion.
type FileChange struct {
	Path       string     `json:"path"`
	ChangeType ChangeType `json:"change_type"`
}

// ExecutionResult is the outcome of one criterion attempt.
type ExecutionResult struct {
	CriterionID int          `json:"criterion_id"`
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Changes     []FileChange `json:"changes,omitempty"`
}
