package cli

import "github.com/spf13/cobra"

// NewRootCommand returns the patchdeploy command. Errors it returns carry
// their exit code; use ExitCode to extract it.
func NewRootCommand() *cobra.Command {
	var inv Invocation
	cmd := &cobra.Command{
		Use:   "patchdeploy",
		Short: "Build and distribute the artifacts named in a worklist",
		Long: `patchdeploy reads a worklist of changed source paths, maps each one to the
artifact it produces in its repository, rebuilds the repositories that need it
and copies the artifacts into every configured target directory.

A text report of every artifact is printed and duplicated to the log files.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return invalidInvocationf("unexpected positional arguments: %q", args)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.ParallelSet = cmd.Flags().Changed("parallel")
			canon, err := inv.canonicalize(cmd.Flags().Changed("workers"))
			if err != nil {
				return err
			}
			res, err := Execute(cmd.Context(), canon)
			if err != nil {
				return &ExitError{Code: res.ExitCode, Err: err}
			}
			return nil
		},
	}
	BindFlags(cmd.Flags(), &inv)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	return cmd
}
