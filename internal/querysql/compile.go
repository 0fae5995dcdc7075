package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/apagea/internal/query"
)

// Mode selects how field paths resolve to SQL expressions.
type Mode int

const (
	// ModeExtract resolves a field path to a json_extract() accessor
	// into the document blob column. Used for collection queries, where
	// documents live as one JSON blob per row.
	ModeExtract Mode = iota

	// ModeFlattened resolves a field path to a quoted physical column
	// name with dots replaced by underscores. Used for view queries,
	// where fields are materialized as columns.
	ModeFlattened
)

// DefaultColumn is the document blob column used in ModeExtract when
// the Compiler does not override it.
const DefaultColumn = "data"

// CompiledPredicate is the compiler's output: a predicate string for a
// WHERE clause plus the named parameters it references.
//
// Invariants:
//   - every :name referenced in Text has an entry in Params
//   - parameter names are unique across the whole compiled tree
//   - no operand value ever appears in Text
type CompiledPredicate struct {
	Text   string
	Params map[string]any
}

// Compiler compiles query expressions to parameterized SQL for SQLite.
//
// CRITICAL: operand values are NEVER interpolated into predicate text.
// Every operand is carried out-of-band as a named parameter. The only
// compile-time text construction is identifiers (field paths and the
// blob column), which are restricted to an allow-list of characters and
// are never user-bindable values.
//
// All generated parameter names carry the "q_" prefix, keeping them
// disjoint from the store layer's reserved "limit"/"offset" parameters.
//
// A Compiler is stateless across calls and safe for concurrent use;
// each Compile carries its own parameter counter.
type Compiler struct {
	// Mode selects field path resolution (see Mode).
	Mode Mode

	// Column is the document blob column for ModeExtract.
	// Empty means DefaultColumn.
	Column string

	// Limits bounds the expression tree. The zero value applies
	// query.DefaultLimits.
	Limits query.Limits
}

// NewCompiler creates a Compiler for the given mode with defaults.
func NewCompiler(mode Mode) *Compiler {
	return &Compiler{Mode: mode}
}

// Compile converts an expression tree to a parameterized predicate.
//
// Compilation is atomic: on error the zero CompiledPredicate is
// returned and no partial result is observable. Compiling the same
// expression twice yields identical text and parameters (the parameter
// counter resets per call).
func (c *Compiler) Compile(expr query.Expr) (CompiledPredicate, error) {
	if err := query.Validate(expr, c.Limits); err != nil {
		return CompiledPredicate{}, err
	}

	st := &compileState{}
	text, params, err := c.compileExpr(st, expr)
	if err != nil {
		return CompiledPredicate{}, err
	}

	return CompiledPredicate{Text: text, Params: params}, nil
}

// compileState carries the per-call parameter counter. Naming a
// parameter from (field, operator, preorder position) keeps repeated
// field+operator pairs collision-free anywhere in the tree.
type compileState struct {
	seq int
}

func (st *compileState) paramName(path string, op query.Operator) string {
	st.seq++
	return fmt.Sprintf("q_%s_%s_%d", normalizeParam(path), op, st.seq)
}

func (c *Compiler) compileExpr(st *compileState, e query.Expr) (string, map[string]any, error) {
	switch n := e.(type) {
	case query.Group:
		return c.compileGroup(st, n)
	case *query.Group:
		return c.compileGroup(st, *n)
	case query.Fields:
		return c.compileFields(st, n)
	case *query.Fields:
		return c.compileFields(st, *n)
	default:
		return "", nil, &query.ValidationError{
			Reason: fmt.Sprintf("unknown expression type %T", e),
		}
	}
}

// compileGroup recursively compiles each child, wraps it in
// parentheses, and joins with the combinator's operator. Parameter maps
// are merged; a name collision would mean the naming discipline broke,
// so it fails rather than silently overwriting.
func (c *Compiler) compileGroup(st *compileState, g query.Group) (string, map[string]any, error) {
	parts := make([]string, 0, len(g.Children))
	params := make(map[string]any)

	for _, child := range g.Children {
		text, childParams, err := c.compileExpr(st, child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+text+")")
		if err := mergeParams(params, childParams); err != nil {
			return "", nil, err
		}
	}

	return strings.Join(parts, " "+string(g.Op)+" "), params, nil
}

// compileFields conjoins all conditions of a field conjunction with AND.
func (c *Compiler) compileFields(st *compileState, fields query.Fields) (string, map[string]any, error) {
	parts := make([]string, 0, len(fields))
	params := make(map[string]any)

	for _, fc := range fields {
		fieldSQL, err := c.fieldExpr(fc.Path)
		if err != nil {
			return "", nil, err
		}
		for _, cond := range fc.Conds {
			text, condParams, err := c.compileCond(st, fieldSQL, fc.Path, cond)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, text)
			if err := mergeParams(params, condParams); err != nil {
				return "", nil, err
			}
		}
	}

	return strings.Join(parts, " AND "), params, nil
}

// fieldExpr resolves a field path to a predicate-ready SQL expression
// for the compiler's mode.
func (c *Compiler) fieldExpr(path string) (string, error) {
	if c.Mode == ModeFlattened {
		return FlatColumn(path)
	}

	column := c.Column
	if column == "" {
		column = DefaultColumn
	}
	return ExtractExpr(column, path)
}

// ExtractExpr returns a json_extract() accessor for a dotted field path
// against a document blob column. Paths are spliced into SQL text as
// identifiers, never bound, so each dotted segment must pass the
// identifier allow-list first.
func ExtractExpr(column, path string) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	if !identOK(column) {
		return "", &query.ValidationError{
			Field:  column,
			Reason: "blob column is not a valid identifier",
		}
	}
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, path), nil
}

// FlatColumn returns the quoted physical column name for a field path
// in flattened mode: dots replaced by underscores, quoted as an
// identifier (identifiers are never user-bindable values).
func FlatColumn(path string) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	return `"` + strings.ReplaceAll(path, ".", "_") + `"`, nil
}

// compileCond maps one (field, operator, operand) triple to a predicate
// fragment plus its bound parameters.
//
// LIKE wildcard characters inside sw/ew/contains operands pass through
// unescaped: "%" and "_" in an operand act as wildcards.
func (c *Compiler) compileCond(st *compileState, fieldSQL, path string, cond query.Cond) (string, map[string]any, error) {
	switch cond.Op {
	case query.OpEq:
		return c.comparison(st, fieldSQL, path, cond, "=")
	case query.OpGt:
		return c.comparison(st, fieldSQL, path, cond, ">")
	case query.OpGte:
		return c.comparison(st, fieldSQL, path, cond, ">=")
	case query.OpLt:
		return c.comparison(st, fieldSQL, path, cond, "<")
	case query.OpLte:
		return c.comparison(st, fieldSQL, path, cond, "<=")

	case query.OpSw:
		name := st.paramName(path, cond.Op)
		text := fmt.Sprintf("%s LIKE :%s", fieldSQL, name)
		return text, map[string]any{name: fmt.Sprintf("%v%%", cond.Value)}, nil
	case query.OpEw:
		name := st.paramName(path, cond.Op)
		text := fmt.Sprintf("%s LIKE :%s", fieldSQL, name)
		return text, map[string]any{name: fmt.Sprintf("%%%v", cond.Value)}, nil
	case query.OpContains:
		name := st.paramName(path, cond.Op)
		text := fmt.Sprintf("%s LIKE :%s", fieldSQL, name)
		return text, map[string]any{name: fmt.Sprintf("%%%v%%", cond.Value)}, nil

	case query.OpSwCI:
		name := st.paramName(path, cond.Op)
		text := fmt.Sprintf("LOWER(%s) LIKE LOWER(:%s)", fieldSQL, name)
		return text, map[string]any{name: fmt.Sprintf("%v%%", cond.Value)}, nil
	case query.OpEwCI:
		name := st.paramName(path, cond.Op)
		text := fmt.Sprintf("LOWER(%s) LIKE LOWER(:%s)", fieldSQL, name)
		return text, map[string]any{name: fmt.Sprintf("%%%v", cond.Value)}, nil

	case query.OpIn:
		return c.compileIn(st, fieldSQL, path, cond)

	default:
		return "", nil, &query.InvalidOperatorError{Field: path, Op: string(cond.Op)}
	}
}

// comparison emits "field <op> :param" with the operand bound.
func (c *Compiler) comparison(st *compileState, fieldSQL, path string, cond query.Cond, sqlOp string) (string, map[string]any, error) {
	name := st.paramName(path, cond.Op)
	text := fmt.Sprintf("%s %s :%s", fieldSQL, sqlOp, name)
	return text, map[string]any{name: cond.Value}, nil
}

// compileIn emits "field IN (:p_0, :p_1, ...)" with one parameter per
// element, preserving input order. An empty list compiles to a constant
// always-false predicate rather than the syntax error "IN ()".
func (c *Compiler) compileIn(st *compileState, fieldSQL, path string, cond query.Cond) (string, map[string]any, error) {
	elems, err := query.ToList(cond.Value)
	if err != nil {
		return "", nil, &query.ValidationError{
			Field:  path,
			Reason: fmt.Sprintf(`"in" operand must be a list, got %T`, cond.Value),
		}
	}
	if len(elems) == 0 {
		return "1 = 0", map[string]any{}, nil // Matches no rows
	}

	base := st.paramName(path, cond.Op)
	placeholders := make([]string, len(elems))
	params := make(map[string]any, len(elems))
	for i, elem := range elems {
		name := fmt.Sprintf("%s_%d", base, i)
		placeholders[i] = ":" + name
		params[name] = elem
	}

	text := fmt.Sprintf("%s IN (%s)", fieldSQL, strings.Join(placeholders, ", "))
	return text, params, nil
}

// mergeParams copies src into dst, failing on a name collision.
func mergeParams(dst, src map[string]any) error {
	for k, v := range src {
		if _, exists := dst[k]; exists {
			return fmt.Errorf("parameter name collision: %s", k)
		}
		dst[k] = v
	}
	return nil
}

// validatePath checks every dotted segment of a field path against the
// identifier allow-list.
func validatePath(path string) error {
	if path == "" {
		return &query.ValidationError{Reason: "empty field path"}
	}
	for _, segment := range strings.Split(path, ".") {
		if !identOK(segment) {
			return &query.ValidationError{
				Field:  path,
				Reason: "field path segments must match [A-Za-z0-9_]+",
			}
		}
	}
	return nil
}

// identOK reports whether s is a non-empty run of allow-listed
// identifier characters.
func identOK(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// normalizeParam maps a field path to a parameter-name component.
// Bound-parameter names cannot contain path separators, so dots (and
// any other character outside [A-Za-z0-9_]) become underscores.
func normalizeParam(path string) string {
	out := make([]rune, 0, len(path))
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
