package agent

import (
	"context"
	"time"

	"github.com/mmuhlariholdings/hlavi-agent/config"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/executor"
	"github.com/mmuhlariholdings/hlavi-agent/llm"
	"github.com/mmuhlariholdings/hlavi-agent/logging"
	"github.com/mmuhlariholdings/hlavi-agent/planner"
	"github.com/mmuhlariholdings/hlavi-agent/ticket"
	"go.opentelemetry.io/otel/trace"
)

type Mode = executor.Mode

const (
	Attended   = executor.Attended
	Unattended = executor.Unattended
)

type State = executor.State

const (
	Idle             = executor.Idle
	Planning         = executor.Planning
	Executing        = executor.Executing
	AwaitingApproval = executor.AwaitingApproval
	Completed        = executor.Completed
	Failed           = executor.Failed
)

// Agent pairs a Planner and an Executor built from the same config. One
// Agent executes one ticket; build a new one for the next ticket.
type Agent struct {
	cfg      config.AgentConfig
	mode     Mode
	planner  *planner.Planner
	executor *executor.Executor
	logger   *logging.Logger
}

type options struct {
	logger  *logging.Logger
	applier executor.Applier
	tracer  trace.Tracer
	backoff func(attempt int) time.Duration
}

type Option func(*options)

// WithLogger sets the logger shared by the planner and the executor.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithApplier sets the action layer. Without one the executor only reports
// the changes the provider claims.
func WithApplier(a executor.Applier) Option {
	return func(o *options) { o.applier = a }
}

// WithTracer sets the tracer used for spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithBackoff overrides the wait between provider retries.
func WithBackoff(b func(attempt int) time.Duration) Option {
	return func(o *options) { o.backoff = b }
}

// New validates cfg and builds an Agent in the Idle state. The config is
// copied; later changes to cfg do not affect the agent.
func New(cfg *config.AgentConfig, mode Mode, provider llm.Provider, opts ...Option) (*Agent, error) {
	if cfg == nil {
		return nil, errors.NotConfigured("")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, errors.NotConfigured("no model provider")
	}

	o := options{logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}

	a := &Agent{cfg: cfg.Clone(), mode: mode, logger: o.logger}

	var err error
	a.planner, err = planner.New(&a.cfg, provider,
		planner.WithLogger(o.logger),
		planner.WithTracer(o.tracer),
		planner.WithBackoff(o.backoff),
	)
	if err != nil {
		return nil, err
	}
	a.executor, err = executor.New(&a.cfg, mode, provider, o.applier,
		executor.WithLogger(o.logger),
		executor.WithTracer(o.tracer),
		executor.WithBackoff(o.backoff),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Agent) ready() error {
	if a == nil || a.planner == nil || a.executor == nil {
		return errors.NotConfigured("")
	}
	return nil
}

// Plan generates acceptance criteria for t without modifying it.
func (a *Agent) Plan(ctx context.Context, t *ticket.Ticket) ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.planner.GeneratePlan(ctx, t)
}

// ExecuteTicket runs t's criteria. See executor.Executor.ExecuteTicket.
func (a *Agent) ExecuteTicket(ctx context.Context, t *ticket.Ticket) ([]executor.ExecutionResult, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.executor.ExecuteTicket(ctx, t)
}

// ExecuteCriterion runs t's next pending criterion, which must have the
// given ID.
func (a *Agent) ExecuteCriterion(ctx context.Context, t *ticket.Ticket, criterionID int) (*executor.ExecutionResult, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	return a.executor.ExecuteCriterion(ctx, t, criterionID)
}

// PlanAndExecute plans t when it has no criteria yet, then executes. The
// ticket that was executed is returned so the caller can persist the plan
// and pass the same ticket to later ExecuteTicket calls. t itself is never
// modified.
func (a *Agent) PlanAndExecute(ctx context.Context, t *ticket.Ticket) (*ticket.Ticket, []executor.ExecutionResult, error) {
	if err := a.ready(); err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, errors.NotConfigured("no ticket supplied")
	}

	work := *t
	if _, ok := planner.AcceptExisting(t); !ok {
		criteria, err := a.planner.GeneratePlan(ctx, t)
		if err != nil {
			return nil, nil, err
		}
		work = t.WithPlan(criteria)
		a.logger.WithTicket(t.ID).Info("plan attached", "criteria", len(criteria))
	}

	results, err := a.executor.ExecuteTicket(ctx, &work)
	return &work, results, err
}

// ApproveAndContinue resumes after approval. It does nothing unless the
// agent is awaiting approval.
func (a *Agent) ApproveAndContinue() {
	if a.ready() != nil {
		return
	}
	a.executor.ApproveAndContinue()
}

// State returns the executor state. A zero Agent reports Idle.
func (a *Agent) State() State {
	if a.ready() != nil {
		return Idle
	}
	return a.executor.State()
}

// Mode returns the execution mode.
func (a *Agent) Mode() Mode {
	if a == nil {
		return Attended
	}
	return a.mode
}

// Checkpoint returns the executor's resumable progress.
func (a *Agent) Checkpoint() (executor.Checkpoint, error) {
	if err := a.ready(); err != nil {
		return executor.Checkpoint{}, err
	}
	return a.executor.Checkpoint(), nil
}

// Restore loads a checkpoint saved by an earlier agent.
func (a *Agent) Restore(cp executor.Checkpoint) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.executor.Restore(cp)
}
