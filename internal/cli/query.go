package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/apagea/internal/query"
	"github.com/roach88/apagea/internal/store"
)

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var limit, offset int
	var viewName bool

	cmd := &cobra.Command{
		Use:   "list <collection|view>",
		Short: "List records with pagination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if limit <= 0 {
				limit = opts.Config.Find.DefaultLimit
			}

			if viewName {
				v, err := s.View(cmd.Context(), args[0])
				if err != nil {
					return reportError(f, err)
				}
				rows, err := v.List(cmd.Context(), limit, offset)
				if err != nil {
					return reportError(f, err)
				}
				return f.SuccessJSON(rows)
			}

			col, err := s.Collection(cmd.Context(), args[0])
			if err != nil {
				return reportError(f, err)
			}
			docs, err := col.List(cmd.Context(), limit, offset)
			if err != nil {
				return reportError(f, err)
			}
			return f.SuccessJSON(docs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&viewName, "view", false, "target is a view")

	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	var viewName bool

	cmd := &cobra.Command{
		Use:   "count <collection|view>",
		Short: "Count records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			var n int64
			if viewName {
				v, err := s.View(cmd.Context(), args[0])
				if err != nil {
					return reportError(f, err)
				}
				n, err = v.Count(cmd.Context())
				if err != nil {
					return reportError(f, err)
				}
			} else {
				col, err := s.Collection(cmd.Context(), args[0])
				if err != nil {
					return reportError(f, err)
				}
				n, err = col.Count(cmd.Context())
				if err != nil {
					return reportError(f, err)
				}
			}
			return f.Success(map[string]any{"count": n})
		},
	}

	cmd.Flags().BoolVar(&viewName, "view", false, "target is a view")

	return cmd
}

// NewFindCommand creates the find command.
func NewFindCommand(opts *RootOptions) *cobra.Command {
	var limit, offset int
	var viewName bool

	cmd := &cobra.Command{
		Use:   "find <collection|view> [query]",
		Short: "Query records with a JSON expression",
		Long: `Query records. The query is a JSON object read from the argument, or
from stdin when the argument is "-" or missing.

Field conditions conjoin implicitly; "AND"/"OR" keys combine nested
query objects. A bare value means equality; operator objects support
eq, gt, gte, lt, lte, sw, ew, contains, swci, ewci and in.

Example:
  apagea find people '{"age": {"gt": 21}}'
  apagea find people '{"OR": [{"city": "NYC"}, {"name": {"swci": "jo"}}]}'
  apagea find roster --view '{"address_city": "Oslo"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)

			arg := ""
			if len(args) == 2 {
				arg = args[1]
			}
			raw, err := readJSONObject(cmd, arg)
			if err != nil {
				return WrapExitError(ExitCommandError, "read query", err)
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			expr, err := query.Parse(raw, s.QueryLimits())
			if err != nil {
				return reportError(f, err)
			}

			if limit <= 0 {
				limit = opts.Config.Find.DefaultLimit
			}
			findOpts := store.FindOptions{Limit: limit, Offset: offset}
			slog.Debug("executing find", "target", args[0], "view", viewName, "limit", limit, "offset", offset)

			if viewName {
				v, err := s.View(cmd.Context(), args[0])
				if err != nil {
					return reportError(f, err)
				}
				rows, err := v.Find(cmd.Context(), expr, findOpts)
				if err != nil {
					return reportError(f, err)
				}
				return f.SuccessJSON(rows)
			}

			col, err := s.Collection(cmd.Context(), args[0])
			if err != nil {
				return reportError(f, err)
			}
			docs, err := col.Find(cmd.Context(), expr, findOpts)
			if err != nil {
				return reportError(f, err)
			}
			return f.SuccessJSON(docs)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&viewName, "view", false, "target is a view")

	return cmd
}
