package cli

import (
	"github.com/spf13/cobra"
)

// NewViewCommand creates the view management command group.
func NewViewCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Manage projection views over collections",
	}

	cmd.AddCommand(newViewCreateCommand(opts))
	cmd.AddCommand(newViewListCommand(opts))
	cmd.AddCommand(newViewRenameCommand(opts))
	cmd.AddCommand(newViewDropCommand(opts))

	return cmd
}

func newViewCreateCommand(opts *RootOptions) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "create <name> <field>...",
		Short: "Create a projection view over a collection",
		Long: `Create a view projecting selected document fields as columns.

Fields are dotted document paths; each projects as a column named by
joining the path with underscores, so "address.city" becomes the
column "address_city". Queries against the view use the flattened
column names.

Example:
  apagea view create roster name address.city --collection people`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.CreateView(cmd.Context(), args[0], collection, args[1:]); err != nil {
				return reportError(f, err)
			}
			return f.Success(map[string]any{"created": args[0], "collection": collection})
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "", "collection to project (required)")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

func newViewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			names, err := s.ListViews(cmd.Context())
			if err != nil {
				return reportError(f, err)
			}
			return f.SuccessJSON(names)
		},
	}
}

func newViewRenameCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.RenameView(cmd.Context(), args[0], args[1]); err != nil {
				return reportError(f, err)
			}
			return f.Success(map[string]any{"renamed": args[0], "to": args[1]})
		},
	}
}

func newViewDropCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DropView(cmd.Context(), args[0]); err != nil {
				return reportError(f, err)
			}
			return f.Success(map[string]any{"dropped": args[0]})
		},
	}
}
