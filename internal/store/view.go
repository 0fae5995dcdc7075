package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/apagea/internal/query"
	"github.com/roach88/apagea/internal/querysql"
)

// View is a handle to a projection view over a collection.
// Views expose selected document fields as flat columns, so queries
// against them compile in flattened mode.
type View struct {
	store    *Store
	name     string
	relation string // quoted physical view identifier
}

// Name returns the logical view name (without the view prefix).
func (v *View) Name() string {
	return v.name
}

// CreateView creates a projection over a collection. Each field is a
// dotted document path; it becomes a column named by joining the path
// segments with underscores (so "address.city" projects as the column
// "address_city"). The pk column is always included.
//
// Views carry no filter of their own. SQLite view DDL cannot hold
// bound parameters, and inlining query operands as literals would
// reintroduce the injection surface the compiler exists to close.
// Filtering happens at read time through View.Find.
func (s *Store) CreateView(ctx context.Context, name, collection string, fields []string) (*View, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, &StoreError{
			Code:    ErrCodeInvalidName,
			Name:    name,
			Message: "view needs at least one projected field",
		}
	}

	col, err := s.Collection(ctx, collection)
	if err != nil {
		return nil, err
	}

	exists, err := s.relationExists(ctx, "view", viewPrefix+name)
	if err != nil {
		return nil, fmt.Errorf("check view %q: %w", name, err)
	}
	if exists {
		return nil, errViewExists(name)
	}

	selects := make([]string, 0, len(fields)+1)
	selects = append(selects, "pk")
	for _, field := range fields {
		extract, err := querysql.ExtractExpr(querysql.DefaultColumn, field)
		if err != nil {
			return nil, err
		}
		column, err := querysql.FlatColumn(field)
		if err != nil {
			return nil, err
		}
		selects = append(selects, fmt.Sprintf("%s AS %s", extract, column))
	}

	createSQL := fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM %s",
		viewRelation(name), strings.Join(selects, ", "), col.table)
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("create view %q: %w", name, err)
	}
	return &View{store: s, name: name, relation: viewRelation(name)}, nil
}

// View returns a handle to an existing view.
// Fails with ErrCodeViewNotFound if the view does not exist.
func (s *Store) View(ctx context.Context, name string) (*View, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	exists, err := s.relationExists(ctx, "view", viewPrefix+name)
	if err != nil {
		return nil, fmt.Errorf("check view %q: %w", name, err)
	}
	if !exists {
		return nil, errViewNotFound(name)
	}
	return &View{store: s, name: name, relation: viewRelation(name)}, nil
}

// ViewExists reports whether a view with the given name exists.
func (s *Store) ViewExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return s.relationExists(ctx, "view", viewPrefix+name)
}

// ListViews returns the logical names of all views, sorted.
func (s *Store) ListViews(ctx context.Context) ([]string, error) {
	return s.listRelations(ctx, "view", viewPrefix)
}

// DropView removes a view. Dropping a missing view is a no-op.
func (s *Store) DropView(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	dropSQL := fmt.Sprintf("DROP VIEW IF EXISTS %s", viewRelation(name))
	if _, err := s.db.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("drop view %q: %w", name, err)
	}
	return nil
}

// RenameView recreates a view under a new name. SQLite has no ALTER
// VIEW, so the stored definition is fetched from sqlite_master, the
// old view dropped, and the definition replayed with the new relation
// name spliced in.
func (s *Store) RenameView(ctx context.Context, oldName, newName string) error {
	if err := ValidateName(oldName); err != nil {
		return err
	}
	if err := ValidateName(newName); err != nil {
		return err
	}

	exists, err := s.relationExists(ctx, "view", viewPrefix+newName)
	if err != nil {
		return fmt.Errorf("check view %q: %w", newName, err)
	}
	if exists {
		return errViewExists(newName)
	}

	var defSQL string
	row := s.db.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'view' AND name = :name",
		sql.Named("name", viewPrefix+oldName))
	if err := row.Scan(&defSQL); err != nil {
		if err == sql.ErrNoRows {
			return errViewNotFound(oldName)
		}
		return fmt.Errorf("rename view %q: %w", oldName, err)
	}

	// sqlite_master stores the verbatim CREATE VIEW statement; only the
	// relation name changes.
	newDef := strings.Replace(defSQL, viewRelation(oldName), viewRelation(newName), 1)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rename view %q: %w", oldName, err)
	}
	defer tx.Rollback()

	dropSQL := fmt.Sprintf("DROP VIEW %s", viewRelation(oldName))
	if _, err := tx.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("rename view %q: %w", oldName, err)
	}
	if _, err := tx.ExecContext(ctx, newDef); err != nil {
		return fmt.Errorf("rename view %q: %w", oldName, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rename view %q: %w", oldName, err)
	}
	return nil
}

// Row is one view result: the record's primary key and the projected
// columns keyed by their flattened names.
type Row struct {
	PK     string         `json:"pk"`
	Fields map[string]any `json:"fields"`
}

// Find returns the view rows matching the query expression. Field
// paths in the expression address the flattened column names, so a
// column projected from "address.city" is queried as "address_city".
func (v *View) Find(ctx context.Context, expr query.Expr, opts FindOptions) ([]Row, error) {
	compiler := &querysql.Compiler{Mode: querysql.ModeFlattened, Limits: v.store.limits}
	pred, err := compiler.Compile(expr)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	findSQL := fmt.Sprintf(
		"SELECT * FROM %s WHERE %s ORDER BY pk LIMIT :limit OFFSET :offset",
		v.relation, pred.Text)
	args := namedArgs(pred.Params)
	args = append(args, sql.Named("limit", limit), sql.Named("offset", opts.Offset))

	rows, err := v.store.db.QueryContext(ctx, findSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("find in view %q: %w", v.name, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("find in view %q: %w", v.name, err)
	}
	return out, nil
}

// List returns view rows paginated by limit and offset, ordered by
// primary key. A limit <= 0 means DefaultFindLimit.
func (v *View) List(ctx context.Context, limit, offset int) ([]Row, error) {
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	listSQL := fmt.Sprintf(
		"SELECT * FROM %s ORDER BY pk LIMIT :limit OFFSET :offset", v.relation)
	rows, err := v.store.db.QueryContext(ctx, listSQL,
		sql.Named("limit", limit), sql.Named("offset", offset))
	if err != nil {
		return nil, fmt.Errorf("list view %q: %w", v.name, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("list view %q: %w", v.name, err)
	}
	return out, nil
}

// Count returns the number of rows in the view.
func (v *View) Count(ctx context.Context) (int64, error) {
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", v.relation)

	var n int64
	if err := v.store.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count view %q: %w", v.name, err)
	}
	return n, nil
}

// scanRows drains a view row set, splitting the pk column from the
// projected fields. Returns an empty slice instead of nil.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("view columns: %w", err)
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan view row: %w", err)
		}

		row := Row{Fields: map[string]any{}}
		for i, col := range cols {
			val := normalizeColumn(values[i])
			if col == "pk" {
				if s, ok := val.(string); ok {
					row.PK = s
				}
				continue
			}
			row.Fields[col] = val
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate view rows: %w", err)
	}
	return out, nil
}

// normalizeColumn maps driver scan types onto the document value set.
// json_extract returns []byte for strings and serialized JSON for
// nested values; both come back as strings here.
func normalizeColumn(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case json.Number:
		return t
	default:
		return v
	}
}
