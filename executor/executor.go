// Package executor drives a ticket's acceptance criteria through the agent
// state machine:
//
//	Idle → Planning → Executing → {AwaitingApproval ⇄ Executing} → Completed
//
// with Failed reachable from any non-terminal state. Criteria are attempted
// strictly in ticket order. In attended mode the executor stops in
// AwaitingApproval after each successful criterion and waits for
// ApproveAndContinue; there is no blocking wait, so the caller decides how
// approval is obtained.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmuhlariholdings/hlavi-agent/config"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/llm"
	"github.com/mmuhlariholdings/hlavi-agent/logging"
	"github.com/mmuhlariholdings/hlavi-agent/retry"
	"github.com/mmuhlariholdings/hlavi-agent/ticket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mmuhlariholdings/hlavi-agent/executor"

// Executor owns the state of one ticket's execution. Create a new Executor
// for every ticket; terminal states are never left.
type Executor struct {
	cfg      *config.AgentConfig
	mode     Mode
	provider llm.Provider
	applier  Applier
	logger   *logging.Logger
	tracer   trace.Tracer
	backoff  func(attempt int) time.Duration

	// run serializes ExecuteTicket and ExecuteCriterion.
	run sync.Mutex

	mu       sync.RWMutex
	state    State
	ticketID string
	next     int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. The default discards.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer. The default is the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithBackoff overrides the wait between provider retries.
func WithBackoff(b func(attempt int) time.Duration) Option {
	return func(e *Executor) { e.backoff = b }
}

// New creates an Executor in the Idle state. A nil applier reports only the
// changes the provider claims in its action.
func New(cfg *config.AgentConfig, mode Mode, provider llm.Provider, applier Applier, opts ...Option) (*Executor, error) {
	if cfg == nil || provider == nil {
		return nil, errors.NotConfigured("")
	}
	if mode != Attended && mode != Unattended {
		return nil, errors.Config(fmt.Sprintf("unknown execution mode %s", mode))
	}
	if applier == nil {
		applier = ApplierFunc(func(context.Context, *Action) ([]FileChange, error) { return nil, nil })
	}

	e := &Executor{
		cfg:     cfg,
		mode:    mode,
		applier: applier,
		logger:  logging.Nop(),
		tracer:  otel.Tracer(tracerName),
		state:   Idle,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.provider = llm.Traced(provider, e.tracer)
	return e, nil
}

// State returns the current state. Safe to call while an execution runs.
func (e *Executor) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Mode returns the mode the executor was built with.
func (e *Executor) Mode() Mode { return e.mode }

// ApproveAndContinue moves AwaitingApproval to Executing. In any other state
// it does nothing.
func (e *Executor) ApproveAndContinue() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == AwaitingApproval {
		e.state = Executing
		e.logger.Info("approval received", "ticket_id", e.ticketID)
	}
}

// ExecuteTicket runs the ticket's pending criteria in order. In unattended
// mode it stops at the first failure and returns the results obtained so far
// with the error. In attended mode it returns after the first successful
// criterion with the state AwaitingApproval. When no pending criterion is
// left the state becomes Completed.
func (e *Executor) ExecuteTicket(ctx context.Context, t *ticket.Ticket) ([]ExecutionResult, error) {
	if !e.run.TryLock() {
		return nil, errors.NotConfigured("an execution is already in progress")
	}
	defer e.run.Unlock()

	start, err := e.resume(t)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "executor.execute_ticket", trace.WithAttributes(
		attribute.String("ticket.id", t.ID),
		attribute.String("agent.mode", e.mode.String()),
		attribute.Int("ticket.criteria", len(t.AcceptanceCriteria)),
	))
	defer span.End()

	e.bind(t)
	log := e.logger.WithTicket(t.ID)

	var results []ExecutionResult
	for idx := start; ; {
		idx = pendingFrom(t, idx)
		if idx < 0 {
			e.setState(Completed)
			log.Info("ticket completed", "results", len(results))
			span.SetStatus(codes.Ok, "")
			return results, nil
		}

		res, err := e.runCriterion(ctx, t, idx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return results, err
		}
		results = append(results, *res)

		if e.mode == Attended {
			log.Info("awaiting approval", "criterion_id", res.CriterionID)
			return results, nil
		}
		idx++
	}
}

// ExecuteCriterion runs a single criterion, which must be the ticket's next
// pending one. On success the state is AwaitingApproval in attended mode
// and stays Executing in unattended mode.
func (e *Executor) ExecuteCriterion(ctx context.Context, t *ticket.Ticket, criterionID int) (*ExecutionResult, error) {
	if !e.run.TryLock() {
		return nil, errors.NotConfigured("an execution is already in progress")
	}
	defer e.run.Unlock()

	start, err := e.resume(t)
	if err != nil {
		return nil, err
	}

	idx := pendingFrom(t, start)
	if idx < 0 {
		return nil, errors.NotConfigured("ticket %s has no pending criteria", t.ID)
	}
	if next := t.AcceptanceCriteria[idx].ID; next != criterionID {
		if _, _, ok := t.Criterion(criterionID); !ok {
			return nil, errors.NotConfigured("ticket %s has no criterion %d", t.ID, criterionID)
		}
		return nil, errors.NotConfigured("criterion %d is out of order; next is %d", criterionID, next)
	}

	e.bind(t)
	return e.runCriterion(ctx, t, idx)
}

// resume checks that t can be executed from the current state and returns
// the index to continue from. It does not change state.
func (e *Executor) resume(t *ticket.Ticket) (int, error) {
	if t == nil {
		return 0, errors.NotConfigured("no ticket supplied")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	switch e.state {
	case Idle:
		return 0, nil
	case Executing:
		if t.ID != e.ticketID {
			return 0, errors.NotConfigured("executor is bound to ticket %s, not %s", e.ticketID, t.ID)
		}
		return e.next, nil
	case AwaitingApproval:
		return 0, errors.NotConfigured("criterion awaits approval")
	default:
		return 0, errors.NotConfigured("execution already %s; create a new executor to start over", e.state)
	}
}

// bind moves a fresh executor through Planning to Executing, fixing the
// ticket and its criterion order for the rest of the run.
func (e *Executor) bind(t *ticket.Ticket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return
	}
	e.state = Planning
	e.ticketID = t.ID
	e.next = 0
	e.logger.WithTicket(t.ID).Debug("state transition", "from", Idle.String(), "to", Planning.String())
	e.state = Executing
	e.logger.WithTicket(t.ID).Debug("state transition", "from", Planning.String(), "to", Executing.String())
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != s {
		e.logger.WithTicket(e.ticketID).Debug("state transition", "from", e.state.String(), "to", s.String())
	}
	e.state = s
}

// runCriterion asks the provider for an action, applies it and advances
// past idx. Any failure leaves the executor Failed.
func (e *Executor) runCriterion(ctx context.Context, t *ticket.Ticket, idx int) (*ExecutionResult, error) {
	c := t.AcceptanceCriteria[idx]

	ctx, span := e.tracer.Start(ctx, "executor.execute_criterion", trace.WithAttributes(
		attribute.String("ticket.id", t.ID),
		attribute.Int("criterion.id", c.ID),
	))
	defer span.End()

	log := e.logger.WithTicket(t.ID).WithPhase("execution").With("criterion_id", c.ID)
	log.Info("executing criterion", "description", c.Description)

	fail := func(err error) (*ExecutionResult, error) {
		e.setState(Failed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("criterion failed", "error", err.Error())
		return nil, err
	}

	var tools string
	if d, ok := e.applier.(toolDescriber); ok {
		tools = d.Describe()
	}
	req := llm.Request{
		Messages:    criterionMessages(t, idx, tools),
		Temperature: e.cfg.Temperature,
	}
	policy := retry.Policy{
		MaxRetries: e.cfg.MaxRetries,
		Backoff:    e.backoff,
		OnRetry: func(attempt int, err error) {
			log.Warn("provider call failed, retrying", "attempt", attempt, "error", err.Error())
		},
	}
	resp, attempts, err := retry.Do(ctx, policy, func(ctx context.Context) (*llm.Response, error) {
		resp, err := e.provider.Generate(ctx, req)
		return resp, llm.Classify(err)
	})
	span.SetAttributes(attribute.Int("llm.attempts", attempts))
	if err != nil {
		return fail(err)
	}

	action, err := ParseAction(resp.Text)
	if err != nil {
		return fail(err)
	}

	changes, err := e.applier.Apply(ctx, action)
	if err != nil {
		if errors.KindOf(err) != errors.KindExecution {
			err = errors.Execution(err, "criterion %d", c.ID)
		}
		if len(changes) > 0 {
			log.Warn("partial changes left in place", "changes", len(changes))
		}
		return fail(err)
	}
	changes = append(changes, action.Changes...)

	e.mu.Lock()
	e.next = idx + 1
	if e.mode == Attended {
		e.state = AwaitingApproval
	} else {
		e.state = Executing
	}
	e.mu.Unlock()

	msg := action.Summary
	if msg == "" {
		msg = fmt.Sprintf("Completed criterion %d", c.ID)
	}
	log.Info("criterion completed", "changes", len(changes), "attempts", attempts)
	span.SetStatus(codes.Ok, "")

	return &ExecutionResult{
		CriterionID: c.ID,
		Success:     true,
		Message:     msg,
		Changes:     changes,
	}, nil
}

// pendingFrom returns the index of the first criterion at or after i that is
// not already completed, or -1.
func pendingFrom(t *ticket.Ticket, i int) int {
	for ; i < len(t.AcceptanceCriteria); i++ {
		if !t.AcceptanceCriteria[i].Completed {
			return i
		}
	}
	return -1
}
