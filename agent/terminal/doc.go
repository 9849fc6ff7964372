// Package terminal runs an attended ticket execution on a terminal.
//
// After every completed criterion the results and file changes are printed
// and the user is asked whether to continue. Answering anything but y or yes
// stops the run without failing it, so it can be approved later from a saved
// checkpoint.
//
// # Usage
//
//	term := terminal.New(a, os.Stdin, os.Stdout)
//	term.OnStep = func(results []executor.ExecutionResult, err error) error {
//	    // persist progress
//	    return nil
//	}
//	err := term.Run(ctx, planned)
package terminal
