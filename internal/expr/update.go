package expr

// UpdateOp is a closed set of field update operators.
type UpdateOp string

const (
	UpSet UpdateOp = "set"
	UpInc UpdateOp = "inc"
	UpDec UpdateOp = "dec"
	UpMul UpdateOp = "mul"
	UpMax UpdateOp = "max"
	UpMin UpdateOp = "min"
)

var updateOps = map[UpdateOp]bool{
	UpSet: true, UpInc: true, UpDec: true, UpMul: true, UpMax: true, UpMin: true,
}

// Assignment applies one operator to one field.
type Assignment struct {
	Field   string
	Op      UpdateOp
	Operand any
}

// Update is an ordered list of assignments, at most one per field. All
// assignments execute as one atomic unit per matched row.
type Update struct {
	Assignments []Assignment
}

// Set appends a Set assignment
func (u *Update) Set(field string, value any) *Update { return u.add(field, UpSet, value) }

// Inc appends an Inc assignment
func (u *Update) Inc(field string, delta any) *Update { return u.add(field, UpInc, delta) }

// Dec appends a Dec assignment
func (u *Update) Dec(field string, delta any) *Update { return u.add(field, UpDec, delta) }

// Mul appends a Mul assignment
func (u *Update) Mul(field string, factor any) *Update { return u.add(field, UpMul, factor) }

// Max appends a Max assignment
func (u *Update) Max(field string, bound any) *Update { return u.add(field, UpMax, bound) }

// Min appends a Min assignment
func (u *Update) Min(field string, bound any) *Update { return u.add(field, UpMin, bound) }

func (u *Update) add(field string, op UpdateOp, operand any) *Update {
	u.Assignments = append(u.Assignments, Assignment{Field: field, Op: op, Operand: operand})
	return u
}

// ValidateShape checks structural invariants: at least one assignment,
// known operators, no field assigned twice.
func (u *Update) ValidateShape() error {
	if u == nil || len(u.Assignments) == 0 {
		return errMalformed("update requires at least one assignment")
	}
	seen := make(map[string]bool, len(u.Assignments))
	for _, a := range u.Assignments {
		if a.Field == "" {
			return errMalformed("update assignment is missing a field name")
		}
		if !updateOps[a.Op] {
			return errUnknownOperator(string(a.Op))
		}
		if seen[a.Field] {
			return errMalformed("field assigned more than once: " + a.Field)
		}
		seen[a.Field] = true
	}
	return nil
}
