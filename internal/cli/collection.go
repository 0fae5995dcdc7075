package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// NewCollectionCommand creates the collection management command group.
func NewCollectionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage document collections",
	}

	cmd.AddCommand(newCollectionCreateCommand(opts))
	cmd.AddCommand(newCollectionListCommand(opts))
	cmd.AddCommand(newCollectionRenameCommand(opts))
	cmd.AddCommand(newCollectionDropCommand(opts))

	return cmd
}

func newCollectionCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.CreateCollection(cmd.Context(), args[0]); err != nil {
				return reportError(f, err)
			}
			slog.Debug("collection created", "name", args[0])
			return f.Success(map[string]any{"created": args[0]})
		},
	}
}

func newCollectionListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			names, err := s.ListCollections(cmd.Context())
			if err != nil {
				return reportError(f, err)
			}
			return f.SuccessJSON(names)
		},
	}
}

func newCollectionRenameCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.RenameCollection(cmd.Context(), args[0], args[1]); err != nil {
				return reportError(f, err)
			}
			return f.Success(map[string]any{"renamed": args[0], "to": args[1]})
		},
	}
}

func newCollectionDropCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a collection and all its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DropCollection(cmd.Context(), args[0]); err != nil {
				return reportError(f, err)
			}
			slog.Debug("collection dropped", "name", args[0])
			return f.Success(map[string]any{"dropped": args[0]})
		},
	}
}
