package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/apagea/internal/document"
)

// readJSONObject decodes a JSON object from the argument, or from
// stdin when the argument is "-" or absent. Numbers decode as
// json.Number so large integers survive.
func readJSONObject(cmd *cobra.Command, arg string) (map[string]any, error) {
	var r io.Reader
	if arg == "" || arg == "-" {
		r = cmd.InOrStdin()
	} else {
		r = strings.NewReader(arg)
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode JSON object: %w", err)
	}
	return out, nil
}

// NewPutCommand creates the put command.
func NewPutCommand(opts *RootOptions) *cobra.Command {
	var pk string
	var upsert bool

	cmd := &cobra.Command{
		Use:   "put <collection> [json]",
		Short: "Store a document in a collection",
		Long: `Store a JSON document. The document is read from the argument, or
from stdin when the argument is "-" or missing.

Without --pk a time-ordered key is generated. With --upsert an
existing record under the key is replaced instead of failing.

Example:
  apagea put people '{"name": "John", "age": 30}'
  cat doc.json | apagea put people --pk p1 --upsert`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)

			arg := ""
			if len(args) == 2 {
				arg = args[1]
			}
			data, err := readJSONObject(cmd, arg)
			if err != nil {
				return WrapExitError(ExitCommandError, "read document", err)
			}

			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			col, err := s.Collection(cmd.Context(), args[0])
			if err != nil {
				return reportError(f, err)
			}

			if upsert {
				if pk == "" {
					pk = document.NewPK()
				}
				if err := col.Upsert(cmd.Context(), pk, data); err != nil {
					return reportError(f, err)
				}
				return f.Success(map[string]any{"pk": pk})
			}

			storedPK, err := col.Insert(cmd.Context(), pk, data)
			if err != nil {
				return reportError(f, err)
			}
			return f.Success(map[string]any{"pk": storedPK})
		},
	}

	cmd.Flags().StringVar(&pk, "pk", "", "primary key (generated when empty)")
	cmd.Flags().BoolVar(&upsert, "upsert", false, "replace an existing record under the key")

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <pk>...",
		Short: "Fetch documents by primary key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			col, err := s.Collection(cmd.Context(), args[0])
			if err != nil {
				return reportError(f, err)
			}

			if len(args) == 2 {
				doc, err := col.Get(cmd.Context(), args[1])
				if err != nil {
					return reportError(f, err)
				}
				return f.SuccessJSON(doc)
			}

			docs, err := col.GetMany(cmd.Context(), args[1:])
			if err != nil {
				return reportError(f, err)
			}
			return f.SuccessJSON(docs)
		},
	}
}

// NewRmCommand creates the rm command.
func NewRmCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <collection> <pk>...",
		Short: "Delete documents by primary key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := formatter(cmd, opts)
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			col, err := s.Collection(cmd.Context(), args[0])
			if err != nil {
				return reportError(f, err)
			}
			if err := col.DeleteMany(cmd.Context(), args[1:]); err != nil {
				return reportError(f, err)
			}
			return f.Success(map[string]any{"deleted": args[1:]})
		},
	}
}
