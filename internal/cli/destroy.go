package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDestroyCommand creates the destroy command.
func NewDestroyCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete the database file and everything in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)

			if !force {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("refusing to destroy %s without --force", opts.Database), nil)
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			if err := s.Destroy(); err != nil {
				return reportError(f, err)
			}
			return f.Success(map[string]any{"destroyed": opts.Database})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm destruction")

	return cmd
}
