package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mmuhlariholdings/hlavi-agent/config"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/llm"
	"github.com/mmuhlariholdings/hlavi-agent/retry"
	"github.com/mmuhlariholdings/hlavi-agent/ticket"
)

func testConfig(maxRetries uint) *config.AgentConfig {
	return &config.AgentConfig{
		Provider:    &config.AnthropicProvider{APIKey: "sk-test", Model: "test"},
		MaxRetries:  maxRetries,
		Temperature: 0.7,
	}
}

func testTicket(n int) *ticket.Ticket {
	t := &ticket.Ticket{ID: "HLA-1", Title: "Add health endpoint"}
	for i := 1; i <= n; i++ {
		t.AcceptanceCriteria = append(t.AcceptanceCriteria, ticket.AcceptanceCriterion{
			ID:          i,
			Description: fmt.Sprintf("criterion %d", i),
		})
	}
	return t
}

func actionJSON(summary string) string {
	return fmt.Sprintf(`{"summary": %q, "steps": []}`, summary)
}

// criterionOf extracts which criterion a request asks for.
func criterionOf(req llm.Request) int {
	last := req.Messages[len(req.Messages)-1].Content
	var id int
	i := strings.LastIndex(last, "Complete criterion ")
	if i >= 0 {
		fmt.Sscanf(last[i:], "Complete criterion %d:", &id)
	}
	return id
}

// echoProvider answers every criterion with a summary naming it.
func echoProvider() *llm.MockProvider {
	m := llm.NewMockProvider()
	m.Handler = func(_ context.Context, req llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: actionJSON(fmt.Sprintf("did %d", criterionOf(req)))}, nil
	}
	return m
}

func newTestExecutor(t *testing.T, cfg *config.AgentConfig, mode Mode, p llm.Provider, a Applier) *Executor {
	t.Helper()
	e, err := New(cfg, mode, p, a, WithBackoff(retry.NoBackoff))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewExecutor(t *testing.T) {
	e := newTestExecutor(t, testConfig(3), Attended, echoProvider(), nil)
	if e.State() != Idle {
		t.Errorf("State() = %s, want idle", e.State())
	}
	if e.Mode() != Attended {
		t.Errorf("Mode() = %s, want attended", e.Mode())
	}

	if _, err := New(nil, Attended, echoProvider(), nil); !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("New(nil cfg) = %v, want not configured", err)
	}
	if _, err := New(testConfig(3), Attended, nil, nil); !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("New(nil provider) = %v, want not configured", err)
	}
	if _, err := New(testConfig(3), Mode(7), echoProvider(), nil); !errors.Is(err, errors.ErrConfig) {
		t.Errorf("New(bad mode) = %v, want config error", err)
	}
}

func TestExecuteTicketUnattended(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("N=%d", n), func(t *testing.T) {
			m := echoProvider()
			e := newTestExecutor(t, testConfig(3), Unattended, m, nil)
			tk := testTicket(n)

			results, err := e.ExecuteTicket(context.Background(), tk)
			if err != nil {
				t.Fatalf("ExecuteTicket: %v", err)
			}
			if len(results) != n {
				t.Fatalf("got %d results, want %d", len(results), n)
			}
			for i, r := range results {
				if r.CriterionID != i+1 || !r.Success || r.Message != fmt.Sprintf("did %d", i+1) {
					t.Errorf("result %d = %+v", i, r)
				}
			}
			if e.State() != Completed {
				t.Errorf("State() = %s, want completed", e.State())
			}
			if m.Calls() != n {
				t.Errorf("provider calls = %d, want %d", m.Calls(), n)
			}
			if got := m.Requests()[0].Temperature; got != 0.7 {
				t.Errorf("temperature = %v, want 0.7", got)
			}
		})
	}
}

func TestExecuteTicketAttended(t *testing.T) {
	ctx := context.Background()
	m := echoProvider()
	e := newTestExecutor(t, testConfig(3), Attended, m, nil)
	tk := testTicket(3)

	for want := 1; want <= 3; want++ {
		results, err := e.ExecuteTicket(ctx, tk)
		if err != nil {
			t.Fatalf("ExecuteTicket #%d: %v", want, err)
		}
		if len(results) != 1 || results[0].CriterionID != want {
			t.Fatalf("ExecuteTicket #%d results = %+v", want, results)
		}
		if e.State() != AwaitingApproval {
			t.Fatalf("State() = %s, want awaiting_approval", e.State())
		}

		// Nothing runs until approval.
		if _, err := e.ExecuteTicket(ctx, tk); !errors.Is(err, errors.ErrNotConfigured) {
			t.Fatalf("unapproved ExecuteTicket = %v, want precondition error", err)
		}
		if e.State() != AwaitingApproval {
			t.Fatalf("state changed by rejected call: %s", e.State())
		}

		e.ApproveAndContinue()
		if e.State() != Executing {
			t.Fatalf("after approval State() = %s, want executing", e.State())
		}
	}

	results, err := e.ExecuteTicket(ctx, tk)
	if err != nil || len(results) != 0 {
		t.Fatalf("final ExecuteTicket = %v, %v; want no results", results, err)
	}
	if e.State() != Completed {
		t.Errorf("State() = %s, want completed", e.State())
	}
	if m.Calls() != 3 {
		t.Errorf("provider calls = %d, want 3", m.Calls())
	}
}

func TestApproveAndContinueNoOp(t *testing.T) {
	ctx := context.Background()

	idle := newTestExecutor(t, testConfig(0), Attended, echoProvider(), nil)
	idle.ApproveAndContinue()
	if idle.State() != Idle {
		t.Errorf("idle: State() = %s", idle.State())
	}

	executing := newTestExecutor(t, testConfig(0), Unattended, echoProvider(), nil)
	if _, err := executing.ExecuteCriterion(ctx, testTicket(2), 1); err != nil {
		t.Fatal(err)
	}
	executing.ApproveAndContinue()
	if executing.State() != Executing {
		t.Errorf("executing: State() = %s", executing.State())
	}

	completed := newTestExecutor(t, testConfig(0), Unattended, echoProvider(), nil)
	if _, err := completed.ExecuteTicket(ctx, testTicket(1)); err != nil {
		t.Fatal(err)
	}
	completed.ApproveAndContinue()
	if completed.State() != Completed {
		t.Errorf("completed: State() = %s", completed.State())
	}

	failed := newTestExecutor(t, testConfig(0), Unattended, llm.NewMockProvider(llm.MockResponse{Text: "not json"}), nil)
	if _, err := failed.ExecuteTicket(ctx, testTicket(1)); err == nil {
		t.Fatal("expected failure")
	}
	failed.ApproveAndContinue()
	if failed.State() != Failed {
		t.Errorf("failed: State() = %s", failed.State())
	}
}

func TestExecuteTicketStopsAtFailure(t *testing.T) {
	const n = 4
	for k := 1; k <= n; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			rejected := errors.PermanentModelAPI(nil, "criterion %d rejected", k)
			m := llm.NewMockProvider()
			var attempted []int
			m.Handler = func(_ context.Context, req llm.Request) (*llm.Response, error) {
				id := criterionOf(req)
				attempted = append(attempted, id)
				if id == k {
					return nil, rejected
				}
				return &llm.Response{Text: actionJSON("ok")}, nil
			}
			e := newTestExecutor(t, testConfig(3), Unattended, m, nil)

			results, err := e.ExecuteTicket(context.Background(), testTicket(n))
			if err != rejected {
				t.Fatalf("err = %v, want the provider's error", err)
			}
			if len(results) != k-1 {
				t.Errorf("got %d results, want %d", len(results), k-1)
			}
			if e.State() != Failed {
				t.Errorf("State() = %s, want failed", e.State())
			}
			if len(attempted) != k || attempted[k-1] != k {
				t.Errorf("attempted = %v, want 1..%d", attempted, k)
			}
		})
	}
}

func TestRetryBudget(t *testing.T) {
	const maxRetries = 2

	t.Run("succeeds on last attempt", func(t *testing.T) {
		m := llm.NewMockProvider(
			llm.MockResponse{Err: llm.TransientError("overloaded")},
			llm.MockResponse{Err: llm.TransientError("overloaded")},
			llm.MockResponse{Text: actionJSON("ok")},
		)
		e := newTestExecutor(t, testConfig(maxRetries), Unattended, m, nil)
		results, err := e.ExecuteTicket(context.Background(), testTicket(1))
		if err != nil || len(results) != 1 {
			t.Fatalf("ExecuteTicket = %v, %v", results, err)
		}
		if m.Calls() != maxRetries+1 {
			t.Errorf("attempts = %d, want %d", m.Calls(), maxRetries+1)
		}
	})

	t.Run("budget exhausted", func(t *testing.T) {
		last := llm.TransientError("still overloaded")
		m := llm.NewMockProvider(
			llm.MockResponse{Err: llm.TransientError("overloaded")},
			llm.MockResponse{Err: llm.TransientError("overloaded")},
			llm.MockResponse{Err: last},
		)
		e := newTestExecutor(t, testConfig(maxRetries), Unattended, m, nil)
		_, err := e.ExecuteTicket(context.Background(), testTicket(1))
		if err != last {
			t.Fatalf("err = %v, want the last provider error unchanged", err)
		}
		if !errors.Is(err, errors.ErrModelAPI) {
			t.Errorf("err kind = %s, want model_api", errors.KindOf(err))
		}
		if m.Calls() != maxRetries+1 {
			t.Errorf("attempts = %d, want %d", m.Calls(), maxRetries+1)
		}
		if e.State() != Failed {
			t.Errorf("State() = %s, want failed", e.State())
		}
	})

	t.Run("empty provider response is not retried", func(t *testing.T) {
		m := llm.NewMockProvider()
		m.Handler = func(context.Context, llm.Request) (*llm.Response, error) { return nil, nil }
		e := newTestExecutor(t, testConfig(maxRetries), Unattended, m, nil)
		_, err := e.ExecuteTicket(context.Background(), testTicket(1))
		if !errors.Is(err, errors.ErrModelAPI) {
			t.Fatalf("err = %v, want model API error", err)
		}
		if m.Calls() != 1 {
			t.Errorf("attempts = %d, want 1", m.Calls())
		}
		if e.State() != Failed {
			t.Errorf("State() = %s, want failed", e.State())
		}
	})

	t.Run("unparseable action is not retried", func(t *testing.T) {
		m := llm.NewMockProvider(llm.MockResponse{Text: "I'd rather not."})
		e := newTestExecutor(t, testConfig(maxRetries), Unattended, m, nil)
		_, err := e.ExecuteTicket(context.Background(), testTicket(1))
		if !errors.Is(err, errors.ErrExecution) {
			t.Fatalf("err = %v, want execution error", err)
		}
		if m.Calls() != 1 {
			t.Errorf("attempts = %d, want 1", m.Calls())
		}
	})
}

func TestApplierChanges(t *testing.T) {
	m := llm.NewMockProvider(llm.MockResponse{Text: `{
		"summary": "wrote handler",
		"steps": [{"type": "write_file", "path": "health.go", "content": "package main"}],
		"changes": [{"path": "go.sum", "change_type": "modified"}]
	}`})
	var applied []Step
	applier := ApplierFunc(func(_ context.Context, a *Action) ([]FileChange, error) {
		applied = append(applied, a.Steps...)
		return []FileChange{{Path: "health.go", ChangeType: Created}}, nil
	})
	e := newTestExecutor(t, testConfig(0), Unattended, m, applier)

	res, err := e.ExecuteCriterion(context.Background(), testTicket(1), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 1 || applied[0].Path != "health.go" {
		t.Errorf("applied = %+v", applied)
	}
	want := []FileChange{{Path: "health.go", ChangeType: Created}, {Path: "go.sum", ChangeType: Modified}}
	if len(res.Changes) != len(want) {
		t.Fatalf("changes = %+v, want %+v", res.Changes, want)
	}
	for i := range want {
		if res.Changes[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, res.Changes[i], want[i])
		}
	}
	if res.Message != "wrote handler" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestApplierFailure(t *testing.T) {
	m := llm.NewMockProvider(llm.MockResponse{Text: actionJSON("x")})
	applier := ApplierFunc(func(context.Context, *Action) ([]FileChange, error) {
		return nil, fmt.Errorf("disk full")
	})
	e := newTestExecutor(t, testConfig(3), Attended, m, applier)

	results, err := e.ExecuteTicket(context.Background(), testTicket(2))
	if !errors.Is(err, errors.ErrExecution) {
		t.Fatalf("err = %v, want execution error", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
	if e.State() != Failed {
		t.Errorf("State() = %s, want failed", e.State())
	}
	if m.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", m.Calls())
	}
}

func TestExecuteAfterTerminalState(t *testing.T) {
	ctx := context.Background()
	tk := testTicket(1)

	completed := newTestExecutor(t, testConfig(0), Unattended, echoProvider(), nil)
	if _, err := completed.ExecuteTicket(ctx, tk); err != nil {
		t.Fatal(err)
	}
	failed := newTestExecutor(t, testConfig(0), Unattended, llm.NewMockProvider(llm.MockResponse{Text: ""}), nil)
	if _, err := failed.ExecuteTicket(ctx, tk); err == nil {
		t.Fatal("expected failure")
	}

	for _, e := range []*Executor{completed, failed} {
		before := e.State()
		if _, err := e.ExecuteTicket(ctx, tk); !errors.Is(err, errors.ErrNotConfigured) {
			t.Errorf("%s: ExecuteTicket = %v, want precondition error", before, err)
		}
		if _, err := e.ExecuteCriterion(ctx, tk, 1); !errors.Is(err, errors.ErrNotConfigured) {
			t.Errorf("%s: ExecuteCriterion = %v, want precondition error", before, err)
		}
		if e.State() != before {
			t.Errorf("State() = %s, want %s", e.State(), before)
		}
	}
}

func TestExecuteCriterionOrdering(t *testing.T) {
	ctx := context.Background()
	m := echoProvider()
	e := newTestExecutor(t, testConfig(0), Unattended, m, nil)
	tk := testTicket(3)

	for _, id := range []int{2, 3, 99} {
		if _, err := e.ExecuteCriterion(ctx, tk, id); !errors.Is(err, errors.ErrNotConfigured) {
			t.Errorf("ExecuteCriterion(%d) = %v, want precondition error", id, err)
		}
	}
	if e.State() != Idle || m.Calls() != 0 {
		t.Fatalf("rejected calls changed state to %s with %d provider calls", e.State(), m.Calls())
	}

	for id := 1; id <= 3; id++ {
		res, err := e.ExecuteCriterion(ctx, tk, id)
		if err != nil {
			t.Fatalf("ExecuteCriterion(%d): %v", id, err)
		}
		if res.CriterionID != id {
			t.Errorf("CriterionID = %d, want %d", res.CriterionID, id)
		}
		if e.State() != Executing {
			t.Errorf("State() = %s, want executing", e.State())
		}
	}

	if _, err := e.ExecuteCriterion(ctx, tk, 1); !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("repeat ExecuteCriterion = %v, want precondition error", err)
	}

	results, err := e.ExecuteTicket(ctx, tk)
	if err != nil || len(results) != 0 {
		t.Fatalf("ExecuteTicket = %v, %v", results, err)
	}
	if e.State() != Completed {
		t.Errorf("State() = %s, want completed", e.State())
	}
}

func TestExecuteTicketBoundToOneTicket(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(t, testConfig(0), Attended, echoProvider(), nil)
	if _, err := e.ExecuteTicket(ctx, testTicket(2)); err != nil {
		t.Fatal(err)
	}
	e.ApproveAndContinue()

	other := testTicket(2)
	other.ID = "HLA-2"
	if _, err := e.ExecuteTicket(ctx, other); !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("ExecuteTicket(other) = %v, want precondition error", err)
	}
	if e.State() != Executing {
		t.Errorf("State() = %s, want executing", e.State())
	}
}

func TestCompletedCriteriaSkipped(t *testing.T) {
	m := echoProvider()
	e := newTestExecutor(t, testConfig(0), Unattended, m, nil)
	tk := testTicket(3)
	tk.AcceptanceCriteria[0].Completed = true

	results, err := e.ExecuteTicket(context.Background(), tk)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].CriterionID != 2 || results[1].CriterionID != 3 {
		t.Errorf("results = %+v", results)
	}
}

func TestEmptyTicketCompletes(t *testing.T) {
	m := echoProvider()
	e := newTestExecutor(t, testConfig(0), Attended, m, nil)
	results, err := e.ExecuteTicket(context.Background(), testTicket(0))
	if err != nil || len(results) != 0 {
		t.Fatalf("ExecuteTicket = %v, %v", results, err)
	}
	if e.State() != Completed || m.Calls() != 0 {
		t.Errorf("State() = %s, calls = %d", e.State(), m.Calls())
	}
}

func TestCanceledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := echoProvider()
	e := newTestExecutor(t, testConfig(3), Unattended, m, nil)
	_, err := e.ExecuteTicket(ctx, testTicket(2))
	if !errors.Is(err, errors.ErrModelAPI) {
		t.Fatalf("err = %v, want model API error", err)
	}
	if e.State() != Failed {
		t.Errorf("State() = %s, want failed", e.State())
	}
	if m.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", m.Calls())
	}
}

func TestStateDuringExecution(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m := llm.NewMockProvider()
	m.Handler = func(context.Context, llm.Request) (*llm.Response, error) {
		close(started)
		<-release
		return &llm.Response{Text: actionJSON("ok")}, nil
	}
	e := newTestExecutor(t, testConfig(0), Attended, m, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var execErr error
	go func() {
		defer wg.Done()
		_, execErr = e.ExecuteTicket(context.Background(), testTicket(1))
	}()

	<-started
	if s := e.State(); s != Executing {
		t.Errorf("State() during execution = %s, want executing", s)
	}
	if _, err := e.ExecuteTicket(context.Background(), testTicket(1)); !errors.Is(err, errors.ErrNotConfigured) {
		t.Errorf("concurrent ExecuteTicket = %v, want precondition error", err)
	}
	close(release)
	wg.Wait()

	if execErr != nil {
		t.Fatal(execErr)
	}
	if e.State() != AwaitingApproval {
		t.Errorf("State() = %s, want awaiting_approval", e.State())
	}
}

func TestPromptNamesCriterion(t *testing.T) {
	tk := testTicket(2)
	tk.Description = "Expose /healthz"
	msgs := criterionMessages(tk, 1, "- search: finds things")
	if len(msgs) != 2 || msgs[0].Role != llm.RoleSystem {
		t.Fatalf("messages = %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "- search: finds things") {
		t.Errorf("system prompt missing tools:\n%s", msgs[0].Content)
	}
	user := msgs[1].Content
	for _, want := range []string{"HLA-1", "Expose /healthz", "- [x] 1. criterion 1", "- [ ] 2. criterion 2", "Complete criterion 2: criterion 2"} {
		if !strings.Contains(user, want) {
			t.Errorf("prompt missing %q:\n%s", want, user)
		}
	}
}
