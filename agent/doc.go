// Package agent is the entry point for automating a ticket: it builds a
// Planner and an Executor from one validated AgentConfig and exposes the
// operations a caller or UI needs.
//
// # Usage
//
//	provider, err := llm.New(ctx, cfg.Agent.Provider)
//	if err != nil {
//	    // handle error
//	}
//	a, err := agent.New(&cfg.Agent, agent.Attended, provider, agent.WithApplier(applier))
//	if err != nil {
//	    // configuration errors are fatal here
//	}
//
//	planned, results, err := a.PlanAndExecute(ctx, t)
//	for err == nil && a.State() == agent.AwaitingApproval {
//	    // show results, ask the user
//	    a.ApproveAndContinue()
//	    results, err = a.ExecuteTicket(ctx, planned)
//	}
//
// # Modes
//
//   - Attended: execution stops in AwaitingApproval after every successful
//     criterion, including the last. The ExecuteTicket call after the last
//     approval finds nothing left and moves to Completed.
//   - Unattended: criteria run back to back until Completed or Failed.
//
// Completed and Failed are final. Calling ExecuteTicket again returns a
// NotConfigured error and leaves the state as it is.
//
// # Subpackages
//
// agent/terminal: drives an attended run interactively, asking for approval
// on a terminal.
package agent
