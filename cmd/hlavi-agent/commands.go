package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/mmuhlariholdings/hlavi-agent/agent"
	"github.com/mmuhlariholdings/hlavi-agent/agent/terminal"
	"github.com/mmuhlariholdings/hlavi-agent/errors"
	"github.com/mmuhlariholdings/hlavi-agent/executor"
	"github.com/mmuhlariholdings/hlavi-agent/planner"
	"github.com/mmuhlariholdings/hlavi-agent/session"
	"github.com/mmuhlariholdings/hlavi-agent/ticket"
	"github.com/spf13/cobra"
)

func planCmd(g *globalFlags) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "plan <ticket.yaml>",
		Short: "Generate acceptance criteria for a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := ticket.Load(args[0])
			if err != nil {
				return err
			}
			a, release, err := e.newAgent(cmd.Context(), agentOptions{mode: agent.Unattended, logger: e.logger})
			if err != nil {
				return err
			}
			defer release()

			criteria, err := a.Plan(cmd.Context(), t)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, c := range criteria {
				fmt.Fprintf(out, "%d. %s\n", i+1, c)
			}
			if !write {
				return nil
			}
			planned := t.WithPlan(criteria)
			if err := ticket.Save(args[0], &planned); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %d criteria to %s\n", len(criteria), args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "replace the ticket's criteria with the plan")
	return cmd
}

func runCmd(g *globalFlags) *cobra.Command {
	var (
		modeName    string
		interactive bool
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "run <ticket.yaml>",
		Short: "Execute a ticket's acceptance criteria",
		Long: `Execute a ticket's acceptance criteria in order.

A ticket without criteria is planned first and the plan is written back to
the ticket file. In attended mode the run stops for approval after every
criterion; continue it with "approve", or pass --interactive to be asked on
the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := executor.ParseMode(modeName)
			if err != nil {
				return err
			}
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			defer e.Close()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			t, err := ticket.Load(path)
			if err != nil {
				return err
			}
			if dryRun && len(t.AcceptanceCriteria) == 0 {
				return errors.New("a dry run needs a ticket with acceptance criteria")
			}

			run := session.New(e.runsDir(), path, t.ID, mode)
			logger := e.logger.WithRun(run.ID)
			a, release, err := e.newAgent(cmd.Context(), agentOptions{
				mode:      mode,
				dryRun:    dryRun,
				withTools: !dryRun,
				logger:    logger,
			})
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			if _, ok := planner.AcceptExisting(t); !ok {
				criteria, err := a.Plan(cmd.Context(), t)
				if err != nil {
					return err
				}
				planned := t.WithPlan(criteria)
				if err := ticket.Save(path, &planned); err != nil {
					return err
				}
				t = &planned
				fmt.Fprintf(out, "Planned %d criteria for %s\n", len(criteria), t.ID)
			}

			fmt.Fprintf(out, "Run %s (%s)\n", run.ID, mode)
			return drive(cmd, a, run, t, interactive)
		},
	}
	cmd.Flags().StringVarP(&modeName, "mode", "m", "attended", "execution mode: attended or unattended")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "ask for approval on the terminal")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use a scripted provider and change no files")
	return cmd
}

func approveCmd(g *globalFlags) *cobra.Command {
	var interactive, dryRun bool
	cmd := &cobra.Command{
		Use:   "approve <run-id>",
		Short: "Approve the last criterion of a paused run and continue it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			defer e.Close()

			run, err := session.Load(e.runsDir(), args[0])
			if err != nil {
				return err
			}
			t, err := ticket.Load(run.TicketPath)
			if err != nil {
				return err
			}
			if t.ID != run.TicketID {
				return errors.New("ticket file %s now holds ticket %s, not %s", run.TicketPath, t.ID, run.TicketID)
			}

			a, release, err := e.newAgent(cmd.Context(), agentOptions{
				mode:      run.Mode,
				dryRun:    dryRun,
				withTools: !dryRun,
				logger:    e.logger.WithRun(run.ID),
			})
			if err != nil {
				return err
			}
			defer release()

			if err := a.Restore(run.Checkpoint); err != nil {
				return err
			}
			if a.State() != agent.AwaitingApproval {
				return errors.New("run %s is %s, not awaiting approval", run.ID, a.State())
			}
			a.ApproveAndContinue()
			return drive(cmd, a, run, t, interactive)
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "keep asking for approval on the terminal")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "use a scripted provider and change no files")
	return cmd
}

func statusCmd(g *globalFlags) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show a run, or the most recent one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(g)
			if err != nil {
				return err
			}
			defer e.Close()

			var run *session.Run
			if len(args) == 1 {
				run, err = session.Load(e.runsDir(), args[0])
			} else {
				run, err = session.Latest(e.runsDir())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			printRun(out, run)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// drive executes t and saves the run after every step. Non-interactive runs
// make a single ExecuteTicket call.
func drive(cmd *cobra.Command, a *agent.Agent, run *session.Run, t *ticket.Ticket, interactive bool) error {
	out := cmd.OutOrStdout()
	save := func(results []executor.ExecutionResult, runErr error) error {
		cp, err := a.Checkpoint()
		if err != nil {
			return err
		}
		run.Record(cp, results, runErr)
		return run.Save()
	}

	if interactive && a.Mode() == agent.Attended {
		term := terminal.New(a, cmd.InOrStdin(), out)
		term.OnStep = save
		if err := term.Run(cmd.Context(), t); err != nil {
			return err
		}
	} else {
		results, err := a.ExecuteTicket(cmd.Context(), t)
		printResults(out, results)
		if serr := save(results, err); serr != nil {
			return serr
		}
		if err != nil {
			return err
		}
		if a.State() == agent.Completed {
			fmt.Fprintf(out, "Ticket %s completed.\n", t.ID)
		}
	}

	if a.State() == agent.AwaitingApproval {
		fmt.Fprintf(out, "Awaiting approval. Continue with: hlavi-agent approve %s\n", run.ID)
	}
	return nil
}

func printResults(w io.Writer, results []executor.ExecutionResult) {
	for _, r := range results {
		fmt.Fprintf(w, "Criterion %d: %s\n", r.CriterionID, r.Message)
		for _, c := range r.Changes {
			fmt.Fprintf(w, "  %s %s\n", c.ChangeType, c.Path)
		}
	}
}

func printRun(w io.Writer, run *session.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", run.ID)
	fmt.Fprintf(tw, "Ticket:\t%s (%s)\n", run.TicketID, run.TicketPath)
	fmt.Fprintf(tw, "Mode:\t%s\n", run.Mode)
	fmt.Fprintf(tw, "State:\t%s\n", run.Checkpoint.State)
	fmt.Fprintf(tw, "Results:\t%d\n", len(run.Results))
	fmt.Fprintf(tw, "Updated:\t%s\n", run.UpdatedAt.Format("2006-01-02 15:04:05"))
	if run.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", run.Error)
	}
	tw.Flush()
	printResults(w, run.Results)
}
