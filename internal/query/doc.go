// Package query defines the expression tree for collection queries and
// the validating parser that builds it from untrusted input.
//
// A query arrives at the boundary as a dynamically-typed nested mapping
// (typically decoded JSON). Parse converts it into a tagged Expr tree,
// rejecting malformed shapes before any compilation begins. The querysql
// package compiles the tree into a parameterized SQL predicate.
//
// Structural rules:
//   - A node with an "AND" or "OR" key is a combinator; its value is a
//     non-empty list of child query nodes.
//   - Any other node is a conjunction of field conditions: each key is a
//     (possibly dotted) field path, each value is either an
//     operator→operand mapping or a bare value (implicit "eq").
//   - Combinator keys and field keys never mix at one level, and a node
//     never carries both "AND" and "OR".
package query
