// Package planner turns a ticket's intent into an ordered list of
// acceptance criteria by asking the model provider.
package planner

import (
	"context"
	"fmt"
	"strings"
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

const tracerName = "github.com/mmuhlariholdings/hlavi-agent/planner"

const systemPrompt = `You plan software tickets. Given a ticket, write the acceptance criteria that must hold for it to be done.
Each criterion is one short, verifiable sentence. Order them so later criteria can build on earlier ones.
Respond with a JSON array of strings and nothing else, for example:
["The /healthz endpoint returns 200", "The endpoint is covered by a test"]`

// Planner generates acceptance criteria. It holds no per-ticket state and is
// safe for concurrent use.
type Planner struct {
	cfg      *config.AgentConfig
	provider llm.Provider
	logger   *logging.Logger
	tracer   trace.Tracer
	backoff  func(attempt int) time.Duration
}

type Option func(*Planner)

// WithLogger sets the logger. The default discards.
func WithLogger(l *logging.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the tracer. The default is the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(p *Planner) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithBackoff overrides the wait between provider retries.
func WithBackoff(b func(attempt int) time.Duration) Option {
	return func(p *Planner) { p.backoff = b }
}

// New returns a Planner using cfg's temperature and retry budget.
func New(cfg *config.AgentConfig, provider llm.Provider, opts ...Option) (*Planner, error) {
	if cfg == nil || provider == nil {
		return nil, errors.NotConfigured("")
	}
	p := &Planner{
		cfg:    cfg,
		logger: logging.Nop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.provider = llm.Traced(provider, p.tracer)
	return p, nil
}

// GeneratePlan asks the provider for the ticket's acceptance criteria. The
// ticket is not modified. Provider failures are returned as model API errors
// once the retry budget is spent; a reply that holds no criteria is a
// planning error and is not retried.
func (p *Planner) GeneratePlan(ctx context.Context, t *ticket.Ticket) ([]string, error) {
	if t == nil {
		return nil, errors.NotConfigured("no ticket supplied")
	}

	ctx, span := p.tracer.Start(ctx, "planner.generate_plan", trace.WithAttributes(
		attribute.String("ticket.id", t.ID),
	))
	defer span.End()

	log := p.logger.WithTicket(t.ID).WithPhase("planning")
	fail := func(err error) ([]string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("planning failed", "error", err.Error())
		return nil, err
	}

	if strings.TrimSpace(t.Title) == "" && strings.TrimSpace(t.Description) == "" {
		return fail(errors.Planning("ticket %s has neither title nor description", t.ID))
	}

	req := llm.Request{
		Messages:    []llm.Message{llm.System(systemPrompt), llm.User(ticketPrompt(t))},
		Temperature: p.cfg.Temperature,
	}
	policy := retry.Policy{
		MaxRetries: p.cfg.MaxRetries,
		Backoff:    p.backoff,
		OnRetry: func(attempt int, err error) {
			log.Warn("provider call failed, retrying", "attempt", attempt, "error", err.Error())
		},
	}

	log.Info("generating plan")
	resp, attempts, err := retry.Do(ctx, policy, func(ctx context.Context) (*llm.Response, error) {
		resp, err := p.provider.Generate(ctx, req)
		return resp, llm.Classify(err)
	})
	span.SetAttributes(attribute.Int("llm.attempts", attempts))
	if err != nil {
		return fail(err)
	}

	criteria, err := ParseCriteria(resp.Text)
	if err != nil {
		return fail(err)
	}

	span.SetAttributes(attribute.Int("plan.criteria", len(criteria)))
	span.SetStatus(codes.Ok, "")
	log.Info("plan generated", "criteria", len(criteria), "attempts", attempts)
	return criteria, nil
}

// AcceptExisting returns the ticket's own criteria when it already has some,
// so callers can skip planning.
func AcceptExisting(t *ticket.Ticket) ([]string, bool) {
	if t == nil || len(t.AcceptanceCriteria) == 0 {
		return nil, false
	}
	return t.Descriptions(), true
}

func ticketPrompt(t *ticket.Ticket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticket %s\nTitle: %s\n", t.ID, strings.TrimSpace(t.Title))
	if d := strings.TrimSpace(t.Description); d != "" {
		fmt.Fprintf(&sb, "Description:\n%s\n", d)
	}
	if len(t.AcceptanceCriteria) > 0 {
		sb.WriteString("\nExisting criteria to refine:\n")
		for _, ac := range t.AcceptanceCriteria {
			fmt.Fprintf(&sb, "- %s\n", ac.Description)
		}
	}
	return sb.String()
}
