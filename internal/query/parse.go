package query

import (
	"fmt"
	"sort"
)

// Limits bounds user-supplied expression trees.
//
// The compiler is recursive, so a deeply nested or very wide tree is a
// resource-control concern: pathological input fails fast with a
// ValidationError instead of risking stack exhaustion. A zero value
// disables the corresponding limit.
type Limits struct {
	// MaxDepth caps combinator nesting depth. A flat field query has
	// depth 1; each enclosing combinator adds one.
	MaxDepth int

	// MaxBreadth caps the number of children of a combinator and the
	// number of field entries at one level.
	MaxBreadth int
}

// DefaultLimits returns the limits applied when callers pass the zero
// Limits value to Parse.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 32, MaxBreadth: 512}
}

// orDefault fills unset limits from DefaultLimits.
func (l Limits) orDefault() Limits {
	if l == (Limits{}) {
		return DefaultLimits()
	}
	return l
}

// Parse converts a raw query mapping into a validated expression tree.
//
// The input is untrusted: it typically comes straight from decoded
// JSON. Parse rejects malformed shapes (empty combinators, mixed
// combinator/field keys, unknown operators, non-list "in" operands,
// trees exceeding limits) before compilation begins, so that structural
// errors never surface mid-recursion.
//
// Field paths and operator tags are sorted lexicographically, making
// compilation deterministic regardless of map iteration order.
func Parse(raw map[string]any, limits Limits) (Expr, error) {
	return parseNode(raw, limits.orDefault(), 1)
}

func parseNode(raw map[string]any, limits Limits, depth int) (Expr, error) {
	if limits.MaxDepth > 0 && depth > limits.MaxDepth {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("nesting depth exceeds limit of %d", limits.MaxDepth),
		}
	}
	if len(raw) == 0 {
		return nil, &ValidationError{Reason: "empty query node"}
	}

	_, hasAnd := raw[string(LogicalAnd)]
	_, hasOr := raw[string(LogicalOr)]
	switch {
	case hasAnd && hasOr:
		return nil, &ValidationError{Reason: `node carries both "AND" and "OR"`}
	case hasAnd:
		return parseGroup(LogicalAnd, raw, limits, depth)
	case hasOr:
		return parseGroup(LogicalOr, raw, limits, depth)
	}

	return parseFields(raw, limits)
}

func parseGroup(op LogicalOp, raw map[string]any, limits Limits, depth int) (Expr, error) {
	// Combinator keys are authoritative and exclusive: sibling field
	// keys at the same level are ambiguous, so the node is rejected
	// rather than silently resolved.
	if len(raw) > 1 {
		return nil, &ValidationError{
			Field:  string(op),
			Reason: "combinator and field keys mixed at one level",
		}
	}

	children, err := ToList(raw[string(op)])
	if err != nil {
		return nil, &ValidationError{
			Field:  string(op),
			Reason: "combinator children must be a list of query nodes",
		}
	}
	if len(children) == 0 {
		return nil, &ValidationError{
			Field:  string(op),
			Reason: "combinator requires at least one child",
		}
	}
	if limits.MaxBreadth > 0 && len(children) > limits.MaxBreadth {
		return nil, &ValidationError{
			Field:  string(op),
			Reason: fmt.Sprintf("combinator has %d children, limit is %d", len(children), limits.MaxBreadth),
		}
	}

	out := make([]Expr, 0, len(children))
	for i, c := range children {
		m, ok := c.(map[string]any)
		if !ok {
			return nil, &ValidationError{
				Field:  string(op),
				Reason: fmt.Sprintf("child %d is %T, want a query object", i, c),
			}
		}
		child, err := parseNode(m, limits, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}

	return Group{Op: op, Children: out}, nil
}

func parseFields(raw map[string]any, limits Limits) (Expr, error) {
	if limits.MaxBreadth > 0 && len(raw) > limits.MaxBreadth {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("query has %d fields, limit is %d", len(raw), limits.MaxBreadth),
		}
	}

	paths := make([]string, 0, len(raw))
	for path := range raw {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	fields := make(Fields, 0, len(paths))
	for _, path := range paths {
		fc, err := parseFieldCond(path, raw[path])
		if err != nil {
			return nil, err
		}
		fields = append(fields, fc)
	}

	return fields, nil
}

func parseFieldCond(path string, v any) (FieldCond, error) {
	m, ok := v.(map[string]any)
	if !ok {
		// Bare value implies equality.
		return FieldCond{Path: path, Conds: []Cond{{Op: OpEq, Value: v}}}, nil
	}
	if len(m) == 0 {
		return FieldCond{}, &ValidationError{Field: path, Reason: "field condition has no operators"}
	}

	tags := make([]string, 0, len(m))
	for tag := range m {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	conds := make([]Cond, 0, len(tags))
	for _, tag := range tags {
		op, err := LookupOperator(path, tag)
		if err != nil {
			return FieldCond{}, err
		}

		val := m[tag]
		if op == OpIn {
			elems, err := ToList(val)
			if err != nil {
				return FieldCond{}, &ValidationError{
					Field:  path,
					Reason: fmt.Sprintf(`"in" operand must be a list, got %T`, val),
				}
			}
			val = elems
		}

		conds = append(conds, Cond{Op: op, Value: val})
	}

	return FieldCond{Path: path, Conds: conds}, nil
}

// ToList normalizes an operand to []any. It accepts the slice shape
// JSON decoding produces plus the common typed slices callers build by
// hand.
func ToList(v any) ([]any, error) {
	switch vv := v.(type) {
	case []any:
		return vv, nil
	case []string:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = e
		}
		return out, nil
	case []int:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = e
		}
		return out, nil
	case []int64:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = e
		}
		return out, nil
	case []float64:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = e
		}
		return out, nil
	case []bool:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = e
		}
		return out, nil
	default:
		return nil, fmt.Errorf("not a list: %T", v)
	}
}
