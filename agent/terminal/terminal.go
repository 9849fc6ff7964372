package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mmuhlariholdings/hlavi-agent/agent"
	"github.com/mmuhlariholdings/hlavi-agent/executor"
	"github.com/mmuhlariholdings/hlavi-agent/ticket"
)

// Terminal drives an attended run, asking for approval between criteria.
type Terminal struct {
	agent *agent.Agent
	in    *bufio.Scanner
	out   io.Writer

	// OnStep, if set, is called after every execution step and after every
	// approval, for example to persist a checkpoint. A non-nil return stops
	// the run.
	OnStep func(results []executor.ExecutionResult, err error) error
}

// New creates a Terminal reading answers from in and writing to out.
func New(a *agent.Agent, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		agent: a,
		in:    bufio.NewScanner(in),
		out:   out,
	}
}

// Run executes tk until it completes, fails, or the user declines to go on.
// Declining or reaching the end of input leaves the agent in
// AwaitingApproval and returns nil; the caller can resume later.
func (t *Terminal) Run(ctx context.Context, tk *ticket.Ticket) error {
	for {
		if t.agent.State() == agent.AwaitingApproval {
			ok, err := t.confirm("Approve and continue? (y/n): ")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(t.out, "Stopped. The run can be approved later.")
				return nil
			}
			t.agent.ApproveAndContinue()
			if err := t.step(nil, nil); err != nil {
				return err
			}
		}

		results, err := t.agent.ExecuteTicket(ctx, tk)
		t.printResults(results)
		if serr := t.step(results, err); serr != nil {
			return serr
		}
		if err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
			return err
		}

		switch t.agent.State() {
		case agent.Completed:
			fmt.Fprintf(t.out, "Ticket %s completed.\n", tk.ID)
			return nil
		case agent.AwaitingApproval:
		default:
			return nil
		}
	}
}

func (t *Terminal) step(results []executor.ExecutionResult, err error) error {
	if t.OnStep == nil {
		return nil
	}
	return t.OnStep(results, err)
}

// confirm prints prompt and reports whether the answer was yes. End of input
// counts as no.
func (t *Terminal) confirm(prompt string) (bool, error) {
	fmt.Fprint(t.out, prompt)
	if !t.in.Scan() {
		fmt.Fprintln(t.out)
		return false, t.in.Err()
	}
	switch strings.ToLower(strings.TrimSpace(t.in.Text())) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (t *Terminal) printResults(results []executor.ExecutionResult) {
	for _, r := range results {
		fmt.Fprintf(t.out, "Criterion %d: %s\n", r.CriterionID, r.Message)
		for _, c := range r.Changes {
			fmt.Fprintf(t.out, "  %s %s\n", c.ChangeType, c.Path)
		}
	}
}
