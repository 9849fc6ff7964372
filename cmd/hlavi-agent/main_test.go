package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmuhlariholdings/hlavi-agent/executor"
	"github.com/mmuhlariholdings/hlavi-agent/session"
)

const testTicket = `id: HLA-9
title: Health check
acceptance_criteria:
  - id: 1
    description: Add the endpoint
  - id: 2
    description: Cover it with a test
`

func execute(t *testing.T, in string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(in), &out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setup(t *testing.T, content string) (root, ticketPath string) {
	t.Helper()
	root = t.TempDir()
	ticketPath = filepath.Join(root, "ticket.yaml")
	if err := os.WriteFile(ticketPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return root, ticketPath
}

func latestRun(t *testing.T, root string) *session.Run {
	t.Helper()
	run, err := session.Latest(session.Dir(root))
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	return run
}

func TestRunDryRunUnattended(t *testing.T) {
	root, path := setup(t, testTicket)

	out, err := execute(t, "", "--root", root, "run", path, "--mode", "unattended", "--dry-run")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	for _, want := range []string{"Criterion 1: dry run", "Criterion 2: dry run", "Ticket HLA-9 completed."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "", "--root", root, "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var run session.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("status output is not a run: %v\n%s", err, out)
	}
	if run.Checkpoint.State != executor.Completed || len(run.Results) != 2 {
		t.Errorf("run = %+v", run)
	}
	if run.TicketID != "HLA-9" || run.Mode != executor.Unattended {
		t.Errorf("run = %+v", run)
	}
}

func TestRunAttendedThenApprove(t *testing.T) {
	root, path := setup(t, testTicket)

	out, err := execute(t, "", "--root", root, "run", path, "--dry-run")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Awaiting approval") {
		t.Fatalf("output = %q", out)
	}
	id := latestRun(t, root).ID

	for i, wantState := range []executor.State{executor.AwaitingApproval, executor.Completed} {
		out, err := execute(t, "", "--root", root, "approve", id, "--dry-run")
		if err != nil {
			t.Fatalf("approve #%d: %v\n%s", i+1, err, out)
		}
		run := latestRun(t, root)
		if run.Checkpoint.State != wantState {
			t.Errorf("after approve #%d state = %s, want %s", i+1, run.Checkpoint.State, wantState)
		}
	}

	if run := latestRun(t, root); len(run.Results) != 2 {
		t.Errorf("results = %+v, want 2", run.Results)
	}
	out, err = execute(t, "", "--root", root, "status", id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "completed") || !strings.Contains(out, id) {
		t.Errorf("status output = %q", out)
	}

	if _, err := execute(t, "", "--root", root, "approve", id, "--dry-run"); err == nil {
		t.Error("approving a completed run should fail")
	}
}

func TestRunInteractive(t *testing.T) {
	root, path := setup(t, testTicket)

	out, err := execute(t, "y\ny\n", "--root", root, "run", path, "--dry-run", "--interactive")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Ticket HLA-9 completed.") {
		t.Errorf("output = %q", out)
	}
	if run := latestRun(t, root); run.Checkpoint.State != executor.Completed {
		t.Errorf("state = %s, want completed", run.Checkpoint.State)
	}
}

func TestCommandErrors(t *testing.T) {
	root, path := setup(t, "id: HLA-10\ntitle: Unplanned\n")

	tests := []struct {
		name string
		args []string
	}{
		{"dry run needs criteria", []string{"--root", root, "run", path, "--dry-run"}},
		{"bad mode", []string{"--root", root, "run", path, "--mode", "sometimes"}},
		{"invalid run id", []string{"--root", root, "approve", "not-a-uuid"}},
		{"unknown run", []string{"--root", root, "status", "00000000-0000-0000-0000-000000000000"}},
		{"no runs yet", []string{"--root", root, "status"}},
		{"missing ticket", []string{"--root", root, "run", filepath.Join(root, "nope.yaml"), "--dry-run"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, "", tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}
