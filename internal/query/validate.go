package query

import "fmt"

// Validate checks a directly-constructed expression tree against the
// same structural rules Parse enforces: no nil or empty nodes, no
// unknown operators, "in" operands enumerable, tree within limits.
//
// Trees produced by Parse are always valid; Validate exists for callers
// that build Expr values by hand and for the compiler's own guard.
// Validate is a pure function with no side effects.
func Validate(expr Expr, limits Limits) error {
	return validateExpr(expr, limits.orDefault(), 1)
}

func validateExpr(e Expr, limits Limits, depth int) error {
	if e == nil {
		return &ValidationError{Reason: "nil expression"}
	}
	if limits.MaxDepth > 0 && depth > limits.MaxDepth {
		return &ValidationError{
			Reason: fmt.Sprintf("nesting depth exceeds limit of %d", limits.MaxDepth),
		}
	}

	switch n := e.(type) {
	case Group:
		return validateGroup(n, limits, depth)
	case *Group:
		return validateGroup(*n, limits, depth)
	case Fields:
		return validateFields(n, limits)
	case *Fields:
		return validateFields(*n, limits)
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown expression type %T", e)}
	}
}

func validateGroup(g Group, limits Limits, depth int) error {
	if g.Op != LogicalAnd && g.Op != LogicalOr {
		return &ValidationError{
			Field:  string(g.Op),
			Reason: "combinator must be AND or OR",
		}
	}
	if len(g.Children) == 0 {
		return &ValidationError{
			Field:  string(g.Op),
			Reason: "combinator requires at least one child",
		}
	}
	if limits.MaxBreadth > 0 && len(g.Children) > limits.MaxBreadth {
		return &ValidationError{
			Field:  string(g.Op),
			Reason: fmt.Sprintf("combinator has %d children, limit is %d", len(g.Children), limits.MaxBreadth),
		}
	}
	for _, child := range g.Children {
		if err := validateExpr(child, limits, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func validateFields(fields Fields, limits Limits) error {
	if len(fields) == 0 {
		return &ValidationError{Reason: "empty field conjunction"}
	}
	if limits.MaxBreadth > 0 && len(fields) > limits.MaxBreadth {
		return &ValidationError{
			Reason: fmt.Sprintf("query has %d fields, limit is %d", len(fields), limits.MaxBreadth),
		}
	}
	for _, fc := range fields {
		if fc.Path == "" {
			return &ValidationError{Reason: "empty field path"}
		}
		if len(fc.Conds) == 0 {
			return &ValidationError{Field: fc.Path, Reason: "field condition has no operators"}
		}
		for _, cond := range fc.Conds {
			if !cond.Op.Valid() {
				return &InvalidOperatorError{Field: fc.Path, Op: string(cond.Op)}
			}
			if cond.Op == OpIn {
				if _, err := ToList(cond.Value); err != nil {
					return &ValidationError{
						Field:  fc.Path,
						Reason: fmt.Sprintf(`"in" operand must be a list, got %T`, cond.Value),
					}
				}
			}
		}
	}
	return nil
}
