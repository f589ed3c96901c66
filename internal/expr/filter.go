package expr

// ComparisonOp is a closed set of leaf comparison operators. Each operator
// carries a fixed operand-type contract enforced at translation time.
type ComparisonOp string

const (
	OpEq     ComparisonOp = "eq"
	OpNe     ComparisonOp = "ne"
	OpGt     ComparisonOp = "gt"
	OpGte    ComparisonOp = "gte"
	OpLt     ComparisonOp = "lt"
	OpLte    ComparisonOp = "lte"
	OpIn     ComparisonOp = "in"
	OpNotIn  ComparisonOp = "nin"
	OpLike   ComparisonOp = "like"
	OpILike  ComparisonOp = "ilike"
	OpExists ComparisonOp = "exists"
	OpIsNull ComparisonOp = "null"
)

// Combinator joins sub-filters into boolean groups.
type Combinator string

const (
	CombAnd Combinator = "and"
	CombOr  Combinator = "or"
	CombNot Combinator = "not"
)

// Filter is a recursive filter expression tree. A node is either a leaf
// (Field/Op/Value set) or a combinator (Comb/Children set), never both.
// Trees are built per request and owned by that request.
type Filter struct {
	// Leaf node
	Field string
	Op    ComparisonOp
	Value any

	// Interior node
	Comb     Combinator
	Children []*Filter
}

// IsLeaf reports whether the node is a field comparison.
func (f *Filter) IsLeaf() bool {
	return f.Comb == ""
}

// Leaf constructs a comparison leaf.
func Leaf(field string, op ComparisonOp, value any) *Filter {
	return &Filter{Field: field, Op: op, Value: value}
}

// Eq builds field == value
func Eq(field string, value any) *Filter { return Leaf(field, OpEq, value) }

// Ne builds field != value
func Ne(field string, value any) *Filter { return Leaf(field, OpNe, value) }

// Gt builds field > value
func Gt(field string, value any) *Filter { return Leaf(field, OpGt, value) }

// Gte builds field >= value
func Gte(field string, value any) *Filter { return Leaf(field, OpGte, value) }

// Lt builds field < value
func Lt(field string, value any) *Filter { return Leaf(field, OpLt, value) }

// Lte builds field <= value
func Lte(field string, value any) *Filter { return Leaf(field, OpLte, value) }

// In builds field IN values
func In(field string, values ...any) *Filter { return Leaf(field, OpIn, values) }

// NotIn builds field NOT IN values
func NotIn(field string, values ...any) *Filter { return Leaf(field, OpNotIn, values) }

// Like builds a case-sensitive pattern match
func Like(field, pattern string) *Filter { return Leaf(field, OpLike, pattern) }

// ILike builds a case-insensitive pattern match
func ILike(field, pattern string) *Filter { return Leaf(field, OpILike, pattern) }

// Exists builds a null-presence check: true means IS NOT NULL
func Exists(field string, present bool) *Filter { return Leaf(field, OpExists, present) }

// IsNull builds field IS NULL (or IS NOT NULL when isNull is false)
func IsNull(field string, isNull bool) *Filter { return Leaf(field, OpIsNull, isNull) }

// And joins children with logical AND
func And(children ...*Filter) *Filter { return &Filter{Comb: CombAnd, Children: children} }

// Or joins children with logical OR
func Or(children ...*Filter) *Filter { return &Filter{Comb: CombOr, Children: children} }

// Not negates exactly one child
func Not(child *Filter) *Filter { return &Filter{Comb: CombNot, Children: []*Filter{child}} }

var comparisonOps = map[ComparisonOp]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNotIn: true, OpLike: true, OpILike: true, OpExists: true, OpIsNull: true,
}

// ValidateShape checks structural invariants recursively: Not has exactly
// one child, And/Or have at least one, leaves name a field and a known
// operator. Field existence and operand types are the translator's job.
func (f *Filter) ValidateShape() error {
	if f == nil {
		return errMalformed("filter node is nil")
	}
	if f.IsLeaf() {
		if len(f.Children) > 0 {
			return errMalformed("leaf node must not have children")
		}
		if f.Field == "" {
			return errMalformed("leaf node is missing a field name")
		}
		if !comparisonOps[f.Op] {
			return errUnknownOperator(string(f.Op))
		}
		return nil
	}
	if f.Field != "" || f.Op != "" || f.Value != nil {
		return errMalformed("combinator node must not carry a field comparison")
	}
	switch f.Comb {
	case CombNot:
		if len(f.Children) != 1 {
			return errMalformed("$not requires exactly one sub-expression")
		}
	case CombAnd, CombOr:
		if len(f.Children) == 0 {
			return errMalformed("$" + string(f.Comb) + " requires at least one sub-expression")
		}
	default:
		return errUnknownOperator(string(f.Comb))
	}
	for _, child := range f.Children {
		if err := child.ValidateShape(); err != nil {
			return err
		}
	}
	return nil
}
