// Package plan lowers validated expressions into parameterized Postgres
// statements. Every operand is a bound parameter; the generated SQL text
// depends only on the expression structure, never on operand values.
package plan

import (
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/grobertson/Rosey-Robot-sub001/internal/expr"
	"github.com/grobertson/Rosey-Robot-sub001/internal/schema"
)

// Statement is a translated, ready-to-execute query plan: SQL text with
// $n placeholders plus the flat parameter list.
type Statement struct {
	SQL  string
	Args []any
}

type builder struct {
	sql  strings.Builder
	args []any
}

// bind appends v to the parameter list and returns its placeholder.
func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) write(s string) {
	b.sql.WriteString(s)
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// lowerFilter writes the predicate for f into the builder. The tree must
// already be shape-validated; field and type checks happen here.
func lowerFilter(b *builder, table schema.Table, f *expr.Filter) error {
	if f.IsLeaf() {
		return lowerLeaf(b, table, f)
	}
	switch f.Comb {
	case expr.CombNot:
		b.write("NOT (")
		if err := lowerFilter(b, table, f.Children[0]); err != nil {
			return err
		}
		b.write(")")
	case expr.CombAnd, expr.CombOr:
		sep := " AND "
		if f.Comb == expr.CombOr {
			sep = " OR "
		}
		b.write("(")
		for i, child := range f.Children {
			if i > 0 {
				b.write(sep)
			}
			if err := lowerFilter(b, table, child); err != nil {
				return err
			}
		}
		b.write(")")
	}
	return nil
}

var comparisonSQL = map[expr.ComparisonOp]string{
	expr.OpEq:  " = ",
	expr.OpNe:  " <> ",
	expr.OpGt:  " > ",
	expr.OpGte: " >= ",
	expr.OpLt:  " < ",
	expr.OpLte: " <= ",
}

func lowerLeaf(b *builder, table schema.Table, f *expr.Filter) error {
	ft, ok := table.FieldType(f.Field)
	if !ok {
		return expr.UnknownField(f.Field)
	}
	col := quoteIdent(f.Field)

	switch f.Op {
	case expr.OpEq, expr.OpNe:
		v, err := coerceScalar(f.Value, ft)
		if err != nil {
			return expr.TypeMismatch(f.Field, string(f.Op), err.Error())
		}
		b.write(col + comparisonSQL[f.Op] + b.bind(v))

	case expr.OpGt, expr.OpGte, expr.OpLt, expr.OpLte:
		if ft != schema.Numeric && ft != schema.Temporal && ft != schema.Any {
			return expr.TypeMismatch(f.Field, string(f.Op), "ordering comparisons require a numeric or temporal field, got "+string(ft))
		}
		v, err := coerceScalar(f.Value, ft)
		if err != nil {
			return expr.TypeMismatch(f.Field, string(f.Op), err.Error())
		}
		b.write(col + comparisonSQL[f.Op] + b.bind(v))

	case expr.OpIn, expr.OpNotIn:
		values, ok := f.Value.([]any)
		if !ok {
			return expr.TypeMismatch(f.Field, string(f.Op), "requires a list of scalars")
		}
		list, err := coerceList(values, ft)
		if err != nil {
			return expr.TypeMismatch(f.Field, string(f.Op), err.Error())
		}
		// One array parameter regardless of list length: the statement
		// shape stays independent of the operand.
		if f.Op == expr.OpNotIn {
			b.write("NOT (" + col + " = ANY(" + b.bind(list) + "))")
		} else {
			b.write(col + " = ANY(" + b.bind(list) + ")")
		}

	case expr.OpLike, expr.OpILike:
		if ft != schema.Text && ft != schema.Any {
			return expr.TypeMismatch(f.Field, string(f.Op), "pattern matching requires a text field, got "+string(ft))
		}
		pattern, ok := f.Value.(string)
		if !ok {
			return expr.TypeMismatch(f.Field, string(f.Op), "requires a string pattern")
		}
		kw := " LIKE "
		if f.Op == expr.OpILike {
			kw = " ILIKE "
		}
		b.write(col + kw + b.bind(pattern))

	case expr.OpExists, expr.OpIsNull:
		present, ok := f.Value.(bool)
		if !ok {
			return expr.TypeMismatch(f.Field, string(f.Op), "requires a boolean")
		}
		// exists(true) and null(false) both mean IS NOT NULL
		if f.Op == expr.OpIsNull {
			present = !present
		}
		if present {
			b.write(col + " IS NOT NULL")
		} else {
			b.write(col + " IS NULL")
		}

	default:
		return expr.UnknownOperator(string(f.Op))
	}
	return nil
}

// lowerWhere appends " WHERE ..." for a non-nil filter after shape
// validation.
func lowerWhere(b *builder, table schema.Table, f *expr.Filter) error {
	if f == nil {
		return nil
	}
	if err := f.ValidateShape(); err != nil {
		return err
	}
	b.write(" WHERE ")
	return lowerFilter(b, table, f)
}
