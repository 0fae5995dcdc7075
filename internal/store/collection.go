package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/apagea/internal/document"
	"github.com/roach88/apagea/internal/query"
	"github.com/roach88/apagea/internal/querysql"
)

// DefaultFindLimit bounds Find and List results when the caller does
// not supply a limit.
const DefaultFindLimit = 10

// Collection is a handle to one document collection.
// Handles are cheap; they carry no state beyond the store reference and
// the precomputed table identifier.
type Collection struct {
	store *Store
	name  string
	table string // quoted physical table identifier
}

// Name returns the logical collection name (without the table prefix).
func (c *Collection) Name() string {
	return c.name
}

// FindOptions controls pagination of Find results.
type FindOptions struct {
	Limit  int // <= 0 means DefaultFindLimit
	Offset int
}

// Insert creates a new record. An empty pk is replaced with a generated
// UUIDv7. Returns the primary key under which the record was stored.
// Inserting an existing pk fails with the engine's constraint error.
func (c *Collection) Insert(ctx context.Context, pk string, data map[string]any) (string, error) {
	if pk == "" {
		pk = document.NewPK()
	}
	blob, err := document.Encode(data)
	if err != nil {
		return "", fmt.Errorf("insert into %q: %w", c.name, err)
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (pk, data) VALUES (:pk, :data)", c.table)
	_, err = c.store.db.ExecContext(ctx, insertSQL,
		sql.Named("pk", pk), sql.Named("data", string(blob)))
	if err != nil {
		return "", fmt.Errorf("insert into %q: %w", c.name, err)
	}
	return pk, nil
}

// InsertMany creates multiple records inside one transaction.
// Documents with an empty PK get a generated one; the keys are returned
// in input order. The transaction fails atomically on any error.
func (c *Collection) InsertMany(ctx context.Context, docs []document.Document) ([]string, error) {
	insertSQL := fmt.Sprintf("INSERT INTO %s (pk, data) VALUES (:pk, :data)", c.table)
	return c.writeMany(ctx, "insert", insertSQL, docs, false)
}

// Upsert inserts a record or replaces the data of an existing one.
// date_created is preserved on replace; last_updated is refreshed.
func (c *Collection) Upsert(ctx context.Context, pk string, data map[string]any) error {
	if pk == "" {
		return errRecordNotFound(pk)
	}
	blob, err := document.Encode(data)
	if err != nil {
		return fmt.Errorf("upsert into %q: %w", c.name, err)
	}

	_, err = c.store.db.ExecContext(ctx, c.upsertSQL(),
		sql.Named("pk", pk), sql.Named("data", string(blob)))
	if err != nil {
		return fmt.Errorf("upsert into %q: %w", c.name, err)
	}
	return nil
}

// UpsertMany inserts or replaces multiple records inside one transaction.
func (c *Collection) UpsertMany(ctx context.Context, docs []document.Document) error {
	_, err := c.writeMany(ctx, "upsert", c.upsertSQL(), docs, false)
	return err
}

func (c *Collection) upsertSQL() string {
	return fmt.Sprintf(`
		INSERT INTO %s (pk, data) VALUES (:pk, :data)
		ON CONFLICT(pk) DO UPDATE SET
			data = excluded.data,
			last_updated = CURRENT_TIMESTAMP
	`, c.table)
}

// Get retrieves a record by primary key.
// Fails with ErrCodeRecordNotFound if no record has the key.
func (c *Collection) Get(ctx context.Context, pk string) (document.Document, error) {
	getSQL := fmt.Sprintf("SELECT pk, data FROM %s WHERE pk = :pk", c.table)
	row := c.store.db.QueryRowContext(ctx, getSQL, sql.Named("pk", pk))

	var gotPK string
	var blob []byte
	if err := row.Scan(&gotPK, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return document.Document{}, errRecordNotFound(pk)
		}
		return document.Document{}, fmt.Errorf("get from %q: %w", c.name, err)
	}

	data, err := document.Decode(blob)
	if err != nil {
		return document.Document{}, fmt.Errorf("get from %q: %w", c.name, err)
	}
	return document.Document{PK: gotPK, Data: data}, nil
}

// GetMany retrieves the records whose primary keys are in pks, binding
// one named parameter per key. Missing keys are skipped, not errors.
// Returns an empty slice (not nil) when nothing matches.
func (c *Collection) GetMany(ctx context.Context, pks []string) ([]document.Document, error) {
	if len(pks) == 0 {
		return []document.Document{}, nil
	}

	placeholders, args := pkParams(pks)
	getSQL := fmt.Sprintf("SELECT pk, data FROM %s WHERE pk IN (%s)", c.table, placeholders)

	rows, err := c.store.db.QueryContext(ctx, getSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("get many from %q: %w", c.name, err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("get many from %q: %w", c.name, err)
	}
	return docs, nil
}

// Update replaces the data of an existing record.
// Fails with ErrCodeRecordNotFound if no record has the key.
func (c *Collection) Update(ctx context.Context, pk string, data map[string]any) error {
	blob, err := document.Encode(data)
	if err != nil {
		return fmt.Errorf("update in %q: %w", c.name, err)
	}

	updateSQL := fmt.Sprintf(
		"UPDATE %s SET data = :data, last_updated = CURRENT_TIMESTAMP WHERE pk = :pk",
		c.table)
	res, err := c.store.db.ExecContext(ctx, updateSQL,
		sql.Named("data", string(blob)), sql.Named("pk", pk))
	if err != nil {
		return fmt.Errorf("update in %q: %w", c.name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update in %q: %w", c.name, err)
	}
	if affected == 0 {
		return errRecordNotFound(pk)
	}
	return nil
}

// UpdateMany updates multiple existing records inside one transaction.
// Any missing key fails the whole transaction with ErrCodeRecordNotFound.
func (c *Collection) UpdateMany(ctx context.Context, docs []document.Document) error {
	updateSQL := fmt.Sprintf(
		"UPDATE %s SET data = :data, last_updated = CURRENT_TIMESTAMP WHERE pk = :pk",
		c.table)
	_, err := c.writeMany(ctx, "update", updateSQL, docs, true)
	return err
}

// Delete removes a record by primary key.
// Deleting a missing key is a no-op.
func (c *Collection) Delete(ctx context.Context, pk string) error {
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE pk = :pk", c.table)
	if _, err := c.store.db.ExecContext(ctx, deleteSQL, sql.Named("pk", pk)); err != nil {
		return fmt.Errorf("delete from %q: %w", c.name, err)
	}
	return nil
}

// DeleteMany removes multiple records by primary key, binding one named
// parameter per key.
func (c *Collection) DeleteMany(ctx context.Context, pks []string) error {
	if len(pks) == 0 {
		return nil
	}

	placeholders, args := pkParams(pks)
	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE pk IN (%s)", c.table, placeholders)
	if _, err := c.store.db.ExecContext(ctx, deleteSQL, args...); err != nil {
		return fmt.Errorf("delete many from %q: %w", c.name, err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)

	var n int64
	if err := c.store.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %q: %w", c.name, err)
	}
	return n, nil
}

// List returns records paginated by limit and offset, ordered by
// primary key for deterministic pages. A limit <= 0 means
// DefaultFindLimit. Returns an empty slice (not nil) when the
// collection is empty.
func (c *Collection) List(ctx context.Context, limit, offset int) ([]document.Document, error) {
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	listSQL := fmt.Sprintf(
		"SELECT pk, data FROM %s ORDER BY pk LIMIT :limit OFFSET :offset", c.table)
	rows, err := c.store.db.QueryContext(ctx, listSQL,
		sql.Named("limit", limit), sql.Named("offset", offset))
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", c.name, err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", c.name, err)
	}
	return docs, nil
}

// Find returns the records matching the query expression.
//
// The expression is compiled in extract mode (json_extract against the
// data column); the compiled predicate text is spliced into the WHERE
// clause and its parameters are passed as bound values, never
// string-substituted. The pagination parameters use the reserved
// "limit"/"offset" names, which the compiler's "q_" prefix can never
// produce. Compiler failures propagate unchanged.
func (c *Collection) Find(ctx context.Context, expr query.Expr, opts FindOptions) ([]document.Document, error) {
	compiler := &querysql.Compiler{Mode: querysql.ModeExtract, Limits: c.store.limits}
	pred, err := compiler.Compile(expr)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	findSQL := fmt.Sprintf(
		"SELECT pk, data FROM %s WHERE %s ORDER BY pk LIMIT :limit OFFSET :offset",
		c.table, pred.Text)
	args := namedArgs(pred.Params)
	args = append(args, sql.Named("limit", limit), sql.Named("offset", opts.Offset))

	rows, err := c.store.db.QueryContext(ctx, findSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("find in %q: %w", c.name, err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("find in %q: %w", c.name, err)
	}
	return docs, nil
}

// writeMany executes one statement per document inside a transaction.
// Documents with an empty PK get a generated one unless mustExist is
// set, in which case an unmatched pk aborts with ErrCodeRecordNotFound.
func (c *Collection) writeMany(ctx context.Context, op, stmtSQL string, docs []document.Document, mustExist bool) ([]string, error) {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s many in %q: %w", op, c.name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return nil, fmt.Errorf("%s many in %q: %w", op, c.name, err)
	}
	defer stmt.Close()

	pks := make([]string, 0, len(docs))
	for _, doc := range docs {
		pk := doc.PK
		if pk == "" {
			if mustExist {
				return nil, errRecordNotFound(pk)
			}
			pk = document.NewPK()
		}
		blob, err := document.Encode(doc.Data)
		if err != nil {
			return nil, fmt.Errorf("%s many in %q: %w", op, c.name, err)
		}

		res, err := stmt.ExecContext(ctx,
			sql.Named("pk", pk), sql.Named("data", string(blob)))
		if err != nil {
			return nil, fmt.Errorf("%s many in %q: %w", op, c.name, err)
		}
		if mustExist {
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, fmt.Errorf("%s many in %q: %w", op, c.name, err)
			}
			if affected == 0 {
				return nil, errRecordNotFound(pk)
			}
		}
		pks = append(pks, pk)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s many in %q: %w", op, c.name, err)
	}
	return pks, nil
}

// pkParams builds the "IN" placeholder list and bound arguments for a
// set of primary keys. The pk_ prefix keeps these out of the compiler's
// q_ namespace.
func pkParams(pks []string) (string, []any) {
	placeholders := make([]byte, 0, len(pks)*8)
	args := make([]any, 0, len(pks))
	for i, pk := range pks {
		name := fmt.Sprintf("pk_%d", i)
		if i > 0 {
			placeholders = append(placeholders, ", "...)
		}
		placeholders = append(placeholders, ':')
		placeholders = append(placeholders, name...)
		args = append(args, sql.Named(name, pk))
	}
	return string(placeholders), args
}

// namedArgs converts a compiled parameter map to driver named arguments.
func namedArgs(params map[string]any) []any {
	args := make([]any, 0, len(params))
	for name, val := range params {
		args = append(args, sql.Named(name, bindValue(val)))
	}
	return args
}

// bindValue converts operand types the SQL driver cannot bind directly.
// json.Number binds as its numeric value so comparisons against
// json_extract results keep numeric affinity.
func bindValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return string(n)
	}
	return v
}

// scanDocuments drains a (pk, data) row set into documents.
// Returns an empty slice instead of nil.
func scanDocuments(rows *sql.Rows) ([]document.Document, error) {
	docs := []document.Document{}
	for rows.Next() {
		var pk string
		var blob []byte
		if err := rows.Scan(&pk, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		data, err := document.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", pk, err)
		}
		docs = append(docs, document.Document{PK: pk, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return docs, nil
}
