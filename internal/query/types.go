package query

// LogicalOp is a boolean combinator joining child expressions.
type LogicalOp string

const (
	// LogicalAnd requires every child expression to match.
	LogicalAnd LogicalOp = "AND"

	// LogicalOr requires at least one child expression to match.
	LogicalOr LogicalOp = "OR"
)

// Expr represents a query expression node.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the SQL compiler.
//
// Expression types:
//   - Group: AND/OR combinator over child expressions
//   - Fields: conjunction of per-field conditions
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Group combines child expressions under a logical operator.
//
// Semantics:
//
//	(child1) <op> (child2) <op> ... <op> (childN)
//
// A Group must have at least one child; Parse and Validate reject empty
// child lists rather than compiling a tautology or contradiction.
type Group struct {
	Op       LogicalOp // LogicalAnd or LogicalOr
	Children []Expr    // Ordered, length >= 1
}

func (Group) exprNode() {}

// Fields is an ordered conjunction of field conditions.
//
// A flat query mapping such as
//
//	{"age": {"gt": 21}, "city": "NY"}
//
// is an implicit AND over its entries. Parse sorts entries by field path
// so that compilation is deterministic regardless of source map order.
type Fields []FieldCond

func (Fields) exprNode() {}

// FieldCond holds all conditions applied to a single field path.
// Multiple conditions on one field are conjoined:
//
//	{"age": {"gt": 10, "lt": 90}}  →  age > :p AND age < :p
type FieldCond struct {
	Path  string // Field path, possibly dotted ("address.city")
	Conds []Cond // Ordered, length >= 1
}

// Cond is a single operator application on a field.
type Cond struct {
	Op    Operator
	Value any
}
