package expr

// AggregateFunc is a closed set of aggregate functions.
type AggregateFunc string

const (
	AggCount AggregateFunc = "count"
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
)

var aggregateFuncs = map[AggregateFunc]bool{
	AggCount: true, AggSum: true, AggAvg: true, AggMin: true, AggMax: true,
}

// AggregateOutput names one aggregate value in the single result row.
// Field is empty only for Count, which then counts all matched rows.
type AggregateOutput struct {
	Name  string
	Func  AggregateFunc
	Field string
}

// Aggregate is an ordered list of named aggregate outputs.
type Aggregate struct {
	Outputs []AggregateOutput
}

// ValidateShape checks structural invariants: at least one output, known
// functions, unique output names, Field present except for Count.
func (a *Aggregate) ValidateShape() error {
	if a == nil || len(a.Outputs) == 0 {
		return errMalformed("aggregate requires at least one output")
	}
	seen := make(map[string]bool, len(a.Outputs))
	for _, out := range a.Outputs {
		if out.Name == "" {
			return errMalformed("aggregate output is missing a name")
		}
		if !aggregateFuncs[out.Func] {
			return errUnknownOperator(string(out.Func))
		}
		if out.Field == "" && out.Func != AggCount {
			return errMalformed("aggregate " + string(out.Func) + " requires a field")
		}
		if seen[out.Name] {
			return errMalformed("aggregate output named more than once: " + out.Name)
		}
		seen[out.Name] = true
	}
	return nil
}

// SortDirection orders a sort key ascending or descending.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// SortKey is one (field, direction) pair.
type SortKey struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Sort is a priority-ordered sequence of sort keys; the first entry is the
// primary key of the sort.
type Sort []SortKey

// ValidateShape checks each key names a field and a known direction.
func (s Sort) ValidateShape() error {
	for _, k := range s {
		if k.Field == "" {
			return errMalformed("sort key is missing a field name")
		}
		switch k.Direction {
		case Asc, Desc, "":
		default:
			return errMalformed("sort direction must be asc or desc: " + string(k.Direction))
		}
	}
	return nil
}
