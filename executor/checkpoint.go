package executor

import (
	"github.com/mmuhlariholdings/hlavi-agent/errors"
)

// Checkpoint is the part of an executor's state needed to resume an attended
// run in another process.
type Checkpoint struct {
	TicketID string `json:"ticket_id,omitempty"`
	State    State  `json:"state"`
	// Next is the index of the next criterion to consider.
	Next int `json:"next"`
}

// Checkpoint returns a snapshot of the executor's progress.
func (e *Executor) Checkpoint() Checkpoint {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Checkpoint{TicketID: e.ticketID, State: e.state, Next: e.next}
}

// Restore loads cp into a fresh executor. It fails if the executor has
// already started or cp is inconsistent.
func (e *Executor) Restore(cp Checkpoint) error {
	if !e.run.TryLock() {
		return errors.NotConfigured("an execution is already in progress")
	}
	defer e.run.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Idle || e.ticketID != "" {
		return errors.NotConfigured("cannot restore into an executor in state %s", e.state)
	}
	switch {
	case cp.State == Planning:
		return errors.Config("checkpoint state planning cannot be resumed")
	case cp.State < Idle || cp.State > Failed:
		return errors.Config("checkpoint has an unknown state")
	case cp.Next < 0:
		return errors.Config("checkpoint has a negative criterion index")
	case cp.State != Idle && cp.TicketID == "":
		return errors.Config("checkpoint has no ticket id")
	}

	e.state = cp.State
	e.ticketID = cp.TicketID
	e.next = cp.Next
	e.logger.WithTicket(cp.TicketID).Info("checkpoint restored", "state", cp.State.String(), "next", cp.Next)
	return nil
}
