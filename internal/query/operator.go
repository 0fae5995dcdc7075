package query

// Operator identifies a field comparison in a query expression.
type Operator string

// The enumerated operator set. Anything else fails with
// *InvalidOperatorError at parse (or compile) time, never at execution
// time.
const (
	OpEq       Operator = "eq"       // exact equality
	OpGt       Operator = "gt"       // greater than
	OpGte      Operator = "gte"      // greater than or equal
	OpLt       Operator = "lt"       // less than
	OpLte      Operator = "lte"      // less than or equal
	OpSw       Operator = "sw"       // starts with
	OpEw       Operator = "ew"       // ends with
	OpContains Operator = "contains" // substring match
	OpSwCI     Operator = "swci"     // starts with, case-insensitive
	OpEwCI     Operator = "ewci"     // ends with, case-insensitive
	OpIn       Operator = "in"       // set membership, one bound parameter per element
)

// operators is the allow-list consulted by LookupOperator.
var operators = map[Operator]bool{
	OpEq:       true,
	OpGt:       true,
	OpGte:      true,
	OpLt:       true,
	OpLte:      true,
	OpSw:       true,
	OpEw:       true,
	OpContains: true,
	OpSwCI:     true,
	OpEwCI:     true,
	OpIn:       true,
}

// LookupOperator resolves an operator tag from query input.
// Returns *InvalidOperatorError naming the field and the offending tag
// if the tag is not in the enumerated set.
func LookupOperator(field, tag string) (Operator, error) {
	op := Operator(tag)
	if !operators[op] {
		return "", &InvalidOperatorError{Field: field, Op: tag}
	}
	return op, nil
}

// Valid reports whether op is in the enumerated operator set.
func (op Operator) Valid() bool {
	return operators[op]
}
