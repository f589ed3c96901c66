package expr

import (
	"encoding/json"
	"errors"
	"testing"
)

func mustKind(t *testing.T, err error, kind ValidationKind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error, got nil")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if vErr.Kind != kind {
		t.Errorf("expected kind %q, got %q (%v)", kind, vErr.Kind, vErr)
	}
}

func TestParseFilterScalarShorthand(t *testing.T) {
	f, err := ParseFilter([]byte(`{"name": "rosey"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsLeaf() {
		t.Fatal("expected a single leaf")
	}
	if f.Field != "name" || f.Op != OpEq {
		t.Errorf("expected name $eq leaf, got %+v", f)
	}
	if f.Value != "rosey" {
		t.Errorf("expected value \"rosey\", got %v", f.Value)
	}
}

func TestParseFilterOperatorDocument(t *testing.T) {
	f, err := ParseFilter([]byte(`{"age": {"$gte": 21, "$lt": 65}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Comb != CombAnd || len(f.Children) != 2 {
		t.Fatalf("expected implicit $and of two leaves, got %+v", f)
	}
	// operator keys lower in sorted order: $gte before $lt
	if f.Children[0].Op != OpGte || f.Children[1].Op != OpLt {
		t.Errorf("expected [$gte, $lt], got [%s, %s]", f.Children[0].Op, f.Children[1].Op)
	}
	n, ok := f.Children[0].Value.(json.Number)
	if !ok || n.String() != "21" {
		t.Errorf("expected json.Number 21, got %T %v", f.Children[0].Value, f.Children[0].Value)
	}
}

func TestParseFilterCompound(t *testing.T) {
	raw := `{"$or": [
		{"$and": [{"a": 1}, {"b": 2}]},
		{"$and": [{"c": 3}, {"d": 4}]}
	]}`
	f, err := ParseFilter([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Comb != CombOr || len(f.Children) != 2 {
		t.Fatalf("expected $or with two children, got %+v", f)
	}
	for i, child := range f.Children {
		if child.Comb != CombAnd || len(child.Children) != 2 {
			t.Errorf("child %d: expected $and of two leaves, got %+v", i, child)
		}
	}
}

func TestParseFilterNot(t *testing.T) {
	f, err := ParseFilter([]byte(`{"$not": {"deleted": true}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Comb != CombNot || len(f.Children) != 1 {
		t.Fatalf("expected $not with one child, got %+v", f)
	}
}

func TestParseFilterIn(t *testing.T) {
	f, err := ParseFilter([]byte(`{"city": {"$in": ["NYC", "LA"]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	values, ok := f.Value.([]any)
	if !ok || len(values) != 2 {
		t.Fatalf("expected two list values, got %v", f.Value)
	}
}

func TestParseFilterEmpty(t *testing.T) {
	for _, raw := range []string{"", "{}", "  "} {
		f, err := ParseFilter([]byte(raw))
		if err != nil {
			t.Errorf("input %q: unexpected error: %v", raw, err)
		}
		if f != nil {
			t.Errorf("input %q: expected nil filter, got %+v", raw, f)
		}
	}
}

func TestParseFilterErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind ValidationKind
	}{
		{"unknown operator", `{"age": {"$near": 5}}`, KindUnknownOperator},
		{"unknown top-level operator", `{"$xor": [{"a": 1}]}`, KindUnknownOperator},
		{"empty and", `{"$and": []}`, KindMalformed},
		{"not an object", `[1,2]`, KindMalformed},
		{"bare array value", `{"a": [1,2]}`, KindMalformed},
		{"empty not", `{"$not": {}}`, KindMalformed},
		{"object operand", `{"a": {"$eq": {"b": 1}}}`, KindMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFilter([]byte(tc.raw))
			mustKind(t, err, tc.kind)
		})
	}
}

func TestParseUpdateOperators(t *testing.T) {
	u, err := ParseUpdate([]byte(`{"$set": {"name": "x"}, "$inc": {"plays": 1}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(u.Assignments) != 2 {
		t.Fatalf("expected two assignments, got %d", len(u.Assignments))
	}
	// $set lowers before $inc regardless of document order
	if u.Assignments[0].Op != UpSet || u.Assignments[0].Field != "name" {
		t.Errorf("expected set name first, got %+v", u.Assignments[0])
	}
	if u.Assignments[1].Op != UpInc || u.Assignments[1].Field != "plays" {
		t.Errorf("expected inc plays second, got %+v", u.Assignments[1])
	}
}

func TestParseUpdatePlainShorthand(t *testing.T) {
	u, err := ParseUpdate([]byte(`{"a": 1, "b": "x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, a := range u.Assignments {
		if a.Op != UpSet {
			t.Errorf("expected set, got %s", a.Op)
		}
	}
}

func TestParseUpdateErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind ValidationKind
	}{
		{"empty", `{}`, KindMalformed},
		{"unknown operator", `{"$push": {"a": 1}}`, KindUnknownOperator},
		{"mixed operators and fields", `{"$set": {"a": 1}, "b": 2}`, KindMalformed},
		{"duplicate field", `{"$set": {"a": 1}, "$inc": {"a": 2}}`, KindMalformed},
		{"empty operator document", `{"$set": {}}`, KindMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseUpdate([]byte(tc.raw))
			mustKind(t, err, tc.kind)
		})
	}
}

func TestParseAggregate(t *testing.T) {
	agg, err := ParseAggregate([]byte(`{"total": {"$count": true}, "avg_age": {"$avg": "age"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agg.Outputs) != 2 {
		t.Fatalf("expected two outputs, got %d", len(agg.Outputs))
	}
	// outputs in sorted name order: avg_age, total
	if agg.Outputs[0].Name != "avg_age" || agg.Outputs[0].Func != AggAvg || agg.Outputs[0].Field != "age" {
		t.Errorf("unexpected first output: %+v", agg.Outputs[0])
	}
	if agg.Outputs[1].Name != "total" || agg.Outputs[1].Func != AggCount || agg.Outputs[1].Field != "" {
		t.Errorf("unexpected second output: %+v", agg.Outputs[1])
	}
}

func TestParseAggregateErrors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind ValidationKind
	}{
		{"sum without field", `{"s": {"$sum": true}}`, KindMalformed},
		{"two functions", `{"s": {"$sum": "a", "$avg": "a"}}`, KindMalformed},
		{"unknown function", `{"s": {"$median": "a"}}`, KindUnknownOperator},
		{"star on sum", `{"s": {"$sum": "*"}}`, KindMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAggregate([]byte(tc.raw))
			mustKind(t, err, tc.kind)
		})
	}
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort([]byte(`[{"field": "age", "direction": "DESC"}, {"field": "name"}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != 2 {
		t.Fatalf("expected two keys, got %d", len(s))
	}
	if s[0].Field != "age" || s[0].Direction != Desc {
		t.Errorf("unexpected primary key: %+v", s[0])
	}
	if s[1].Direction != Asc {
		t.Errorf("expected default asc, got %s", s[1].Direction)
	}

	if _, err := ParseSort([]byte(`[{"field": "a", "direction": "sideways"}]`)); err == nil {
		t.Error("expected an error for a bad direction")
	}
}

func TestValidateShapeInvariants(t *testing.T) {
	if err := Not(Eq("a", 1)).ValidateShape(); err != nil {
		t.Errorf("single-child not should be valid: %v", err)
	}
	bad := &Filter{Comb: CombNot, Children: []*Filter{Eq("a", 1), Eq("b", 2)}}
	mustKind(t, bad.ValidateShape(), KindMalformed)

	mustKind(t, (&Filter{Comb: CombOr}).ValidateShape(), KindMalformed)

	mixed := &Filter{Field: "a", Op: OpEq, Value: 1, Comb: CombAnd, Children: []*Filter{Eq("b", 2)}}
	if err := mixed.ValidateShape(); err == nil {
		t.Error("node carrying both leaf and combinator state should be invalid")
	}
}
