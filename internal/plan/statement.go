package plan

import (
	"github.com/grobertson/Rosey-Robot-sub001/internal/expr"
	"github.com/grobertson/Rosey-Robot-sub001/internal/schema"
)

// Search translates filter/sort/limit/offset into one SELECT statement.
// A nil limit means unbounded; a present limit must be positive. Offset
// without limit is permitted. Absent sort means backend-default order.
func Search(table schema.Table, f *expr.Filter, s expr.Sort, limit, offset *int) (*Statement, error) {
	b := &builder{}
	b.write("SELECT * FROM " + quoteIdent(table.Name))
	if err := lowerWhere(b, table, f); err != nil {
		return nil, err
	}
	if err := lowerOrderBy(b, table, s); err != nil {
		return nil, err
	}
	if limit != nil {
		if *limit <= 0 {
			return nil, expr.Malformed("limit must be positive")
		}
		b.write(" LIMIT " + b.bind(*limit))
	}
	if offset != nil {
		if *offset < 0 {
			return nil, expr.Malformed("offset must not be negative")
		}
		b.write(" OFFSET " + b.bind(*offset))
	}
	return &Statement{SQL: b.sql.String(), Args: b.args}, nil
}

func lowerOrderBy(b *builder, table schema.Table, s expr.Sort) error {
	if len(s) == 0 {
		return nil
	}
	if err := s.ValidateShape(); err != nil {
		return err
	}
	b.write(" ORDER BY ")
	for i, key := range s {
		if _, ok := table.FieldType(key.Field); !ok {
			return expr.UnknownField(key.Field)
		}
		if i > 0 {
			b.write(", ")
		}
		b.write(quoteIdent(key.Field))
		if key.Direction == expr.Desc {
			b.write(" DESC")
		} else {
			b.write(" ASC")
		}
	}
	return nil
}

// Update translates filter+update into one UPDATE statement. The
// read-modify-write operators compile into the SET clause itself, so
// concurrent updates against the same row never race at the caller layer.
// A nil filter updates every row.
func Update(table schema.Table, f *expr.Filter, u *expr.Update) (*Statement, error) {
	if u == nil {
		return nil, expr.Malformed("update requires at least one assignment")
	}
	if err := u.ValidateShape(); err != nil {
		return nil, err
	}
	b := &builder{}
	b.write("UPDATE " + quoteIdent(table.Name) + " SET ")
	for i, a := range u.Assignments {
		if i > 0 {
			b.write(", ")
		}
		if err := lowerAssignment(b, table, a); err != nil {
			return nil, err
		}
	}
	if err := lowerWhere(b, table, f); err != nil {
		return nil, err
	}
	return &Statement{SQL: b.sql.String(), Args: b.args}, nil
}

func lowerAssignment(b *builder, table schema.Table, a expr.Assignment) error {
	ft, ok := table.FieldType(a.Field)
	if !ok {
		return expr.UnknownField(a.Field)
	}
	col := quoteIdent(a.Field)

	switch a.Op {
	case expr.UpSet:
		v, err := coerceScalar(a.Operand, ft)
		if err != nil {
			return expr.TypeMismatch(a.Field, string(a.Op), err.Error())
		}
		b.write(col + " = " + b.bind(v))
		return nil

	case expr.UpInc, expr.UpDec, expr.UpMul:
		if ft != schema.Numeric && ft != schema.Any {
			return expr.TypeMismatch(a.Field, string(a.Op), "arithmetic updates require a numeric field, got "+string(ft))
		}
		v, err := coerceScalar(a.Operand, schema.Numeric)
		if err != nil {
			return expr.TypeMismatch(a.Field, string(a.Op), err.Error())
		}
		var sym string
		switch a.Op {
		case expr.UpInc:
			sym = " + "
		case expr.UpDec:
			sym = " - "
		default:
			sym = " * "
		}
		b.write(col + " = " + col + sym + b.bind(v))
		return nil

	case expr.UpMax, expr.UpMin:
		if ft != schema.Numeric && ft != schema.Temporal && ft != schema.Any {
			return expr.TypeMismatch(a.Field, string(a.Op), "bounding updates require a numeric or temporal field, got "+string(ft))
		}
		v, err := coerceScalar(a.Operand, ft)
		if err != nil {
			return expr.TypeMismatch(a.Field, string(a.Op), err.Error())
		}
		// GREATEST/LEAST keep the whole read-modify-write in one
		// statement, so retries are idempotent.
		fn := "GREATEST"
		if a.Op == expr.UpMin {
			fn = "LEAST"
		}
		b.write(col + " = " + fn + "(" + col + ", " + b.bind(v) + ")")
		return nil

	default:
		return expr.UnknownOperator(string(a.Op))
	}
}

// Aggregate translates filter+aggregate into one single-row SELECT.
// Sum and Count are coalesced to 0 over zero matched rows; Avg, Min and
// Max return NULL.
func Aggregate(table schema.Table, f *expr.Filter, agg *expr.Aggregate) (*Statement, error) {
	if agg == nil {
		return nil, expr.Malformed("aggregate requires at least one output")
	}
	if err := agg.ValidateShape(); err != nil {
		return nil, err
	}
	b := &builder{}
	b.write("SELECT ")
	for i, out := range agg.Outputs {
		if i > 0 {
			b.write(", ")
		}
		if err := lowerAggregateOutput(b, table, out); err != nil {
			return nil, err
		}
	}
	b.write(" FROM " + quoteIdent(table.Name))
	if err := lowerWhere(b, table, f); err != nil {
		return nil, err
	}
	return &Statement{SQL: b.sql.String(), Args: b.args}, nil
}

func lowerAggregateOutput(b *builder, table schema.Table, out expr.AggregateOutput) error {
	alias := " AS " + quoteIdent(out.Name)

	if out.Func == expr.AggCount && out.Field == "" {
		b.write("COUNT(*)" + alias)
		return nil
	}

	ft, ok := table.FieldType(out.Field)
	if !ok {
		return expr.UnknownField(out.Field)
	}
	col := quoteIdent(out.Field)

	switch out.Func {
	case expr.AggCount:
		b.write("COUNT(" + col + ")" + alias)
	case expr.AggSum:
		if ft != schema.Numeric && ft != schema.Any {
			return expr.TypeMismatch(out.Field, string(out.Func), "sum requires a numeric field, got "+string(ft))
		}
		b.write("COALESCE(SUM(" + col + "), 0)" + alias)
	case expr.AggAvg:
		if ft != schema.Numeric && ft != schema.Any {
			return expr.TypeMismatch(out.Field, string(out.Func), "avg requires a numeric field, got "+string(ft))
		}
		b.write("AVG(" + col + ")" + alias)
	case expr.AggMin, expr.AggMax:
		if ft == schema.Boolean {
			return expr.TypeMismatch(out.Field, string(out.Func), "min/max is not defined for boolean fields")
		}
		fn := "MIN"
		if out.Func == expr.AggMax {
			fn = "MAX"
		}
		b.write(fn + "(" + col + ")" + alias)
	}
	return nil
}
