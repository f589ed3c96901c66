package expr

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// ParseFilter builds a validated filter tree from a Mongo-style JSON
// document, e.g.
//
//	{"age": {"$gte": 21}, "$or": [{"city": "NYC"}, {"city": "LA"}]}
//
// Multiple entries at one level are an implicit $and. An empty document
// (or empty input) means "match all rows" and returns a nil filter.
func ParseFilter(raw []byte) (*Filter, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	doc, err := decodeObject(raw, "filter")
	if err != nil {
		return nil, err
	}
	f, err := parseFilterDoc(doc)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}
	if err := f.ValidateShape(); err != nil {
		return nil, err
	}
	return f, nil
}

var filterOps = map[string]ComparisonOp{
	"$eq": OpEq, "$ne": OpNe,
	"$gt": OpGt, "$gte": OpGte, "$lt": OpLt, "$lte": OpLte,
	"$in": OpIn, "$nin": OpNotIn,
	"$like": OpLike, "$ilike": OpILike,
	"$exists": OpExists, "$null": OpIsNull,
}

func parseFilterDoc(doc map[string]json.RawMessage) (*Filter, error) {
	children := make([]*Filter, 0, len(doc))
	for _, key := range sortedKeys(doc) {
		raw := doc[key]
		switch {
		case key == "$and" || key == "$or":
			subs, err := parseFilterList(raw, key)
			if err != nil {
				return nil, err
			}
			comb := CombAnd
			if key == "$or" {
				comb = CombOr
			}
			children = append(children, &Filter{Comb: comb, Children: subs})
		case key == "$not":
			sub, err := decodeObject(raw, "$not")
			if err != nil {
				return nil, err
			}
			child, err := parseFilterDoc(sub)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, errMalformed("$not requires exactly one sub-expression")
			}
			children = append(children, Not(child))
		case strings.HasPrefix(key, "$"):
			return nil, errUnknownOperator(key)
		default:
			leaves, err := parseFieldComparisons(key, raw)
			if err != nil {
				return nil, err
			}
			children = append(children, leaves...)
		}
	}
	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	default:
		return And(children...), nil
	}
}

func parseFilterList(raw json.RawMessage, op string) ([]*Filter, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errMalformed(op + " requires an array of sub-expressions")
	}
	if len(items) == 0 {
		return nil, errMalformed(op + " requires at least one sub-expression")
	}
	subs := make([]*Filter, 0, len(items))
	for _, item := range items {
		doc, err := decodeObject(item, op+" entry")
		if err != nil {
			return nil, err
		}
		sub, err := parseFilterDoc(doc)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, errMalformed(op + " entries must not be empty")
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// parseFieldComparisons expands one field entry into leaves. A scalar value
// is shorthand for $eq; an operator document may hold several operators,
// which become an implicit $and at the caller.
func parseFieldComparisons(field string, raw json.RawMessage) ([]*Filter, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		doc, err := decodeObject(raw, "comparison for field "+field)
		if err != nil {
			return nil, err
		}
		if len(doc) == 0 {
			return nil, errMalformed("empty comparison document for field " + field)
		}
		leaves := make([]*Filter, 0, len(doc))
		for _, opKey := range sortedKeys(doc) {
			op, ok := filterOps[opKey]
			if !ok {
				return nil, errUnknownOperator(opKey)
			}
			value, err := decodeOperand(doc[opKey], op)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, Leaf(field, op, value))
		}
		return leaves, nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, errMalformed("bare array value for field " + field + "; use $in")
	}
	value, err := decodeScalar(raw)
	if err != nil {
		return nil, err
	}
	return []*Filter{Eq(field, value)}, nil
}

func decodeOperand(raw json.RawMessage, op ComparisonOp) (any, error) {
	switch op {
	case OpIn, OpNotIn:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errMalformed("$" + string(op) + " requires an array of scalars")
		}
		values := make([]any, 0, len(items))
		for _, item := range items {
			v, err := decodeScalar(item)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	default:
		return decodeScalar(raw)
	}
}

// decodeScalar decodes a JSON scalar, keeping numbers as json.Number so the
// translator can distinguish integers from floats.
func decodeScalar(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errMalformed("invalid JSON value")
	}
	switch v.(type) {
	case map[string]any, []any:
		return nil, errMalformed("expected a scalar value")
	}
	return v, nil
}

// updateOpKeys fixes the lowering order of update operator documents.
var updateOpKeys = []struct {
	key string
	op  UpdateOp
}{
	{"$set", UpSet}, {"$inc", UpInc}, {"$dec", UpDec},
	{"$mul", UpMul}, {"$max", UpMax}, {"$min", UpMin},
}

// ParseUpdate builds an update expression from a Mongo-style document, e.g.
//
//	{"$set": {"name": "x"}, "$inc": {"plays": 1}}
//
// A document with no $-operators is shorthand for $set of every field.
func ParseUpdate(raw []byte) (*Update, error) {
	doc, err := decodeObject(raw, "update")
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, errMalformed("update requires at least one assignment")
	}

	hasOp, hasPlain := false, false
	for key := range doc {
		if strings.HasPrefix(key, "$") {
			hasOp = true
		} else {
			hasPlain = true
		}
	}
	if hasOp && hasPlain {
		return nil, errMalformed("update mixes $-operators with plain fields")
	}

	u := &Update{}
	if !hasOp {
		for _, field := range sortedKeys(doc) {
			value, err := decodeScalar(doc[field])
			if err != nil {
				return nil, err
			}
			u.Set(field, value)
		}
		return validatedUpdate(u)
	}

	known := make(map[string]UpdateOp, len(updateOpKeys))
	for _, entry := range updateOpKeys {
		known[entry.key] = entry.op
	}
	for key := range doc {
		if _, ok := known[key]; !ok {
			return nil, errUnknownOperator(key)
		}
	}
	for _, entry := range updateOpKeys {
		raw, ok := doc[entry.key]
		if !ok {
			continue
		}
		fields, err := decodeObject(raw, entry.key)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, errMalformed(entry.key + " requires at least one field")
		}
		for _, field := range sortedKeys(fields) {
			value, err := decodeScalar(fields[field])
			if err != nil {
				return nil, err
			}
			u.add(field, entry.op, value)
		}
	}
	return validatedUpdate(u)
}

func validatedUpdate(u *Update) (*Update, error) {
	if err := u.ValidateShape(); err != nil {
		return nil, err
	}
	return u, nil
}

var aggregateFuncKeys = map[string]AggregateFunc{
	"$count": AggCount, "$sum": AggSum, "$avg": AggAvg, "$min": AggMin, "$max": AggMax,
}

// ParseAggregate builds an aggregate spec from a document mapping output
// names to single-function documents, e.g.
//
//	{"total": {"$count": true}, "avg_age": {"$avg": "age"}}
func ParseAggregate(raw []byte) (*Aggregate, error) {
	doc, err := decodeObject(raw, "aggregate")
	if err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, errMalformed("aggregate requires at least one output")
	}
	agg := &Aggregate{}
	for _, name := range sortedKeys(doc) {
		fn, err := decodeObject(doc[name], "aggregate output "+name)
		if err != nil {
			return nil, err
		}
		if len(fn) != 1 {
			return nil, errMalformed("aggregate output " + name + " requires exactly one function")
		}
		for fnKey, fnRaw := range fn {
			f, ok := aggregateFuncKeys[fnKey]
			if !ok {
				return nil, errUnknownOperator(fnKey)
			}
			field, err := decodeAggregateField(fnRaw, f)
			if err != nil {
				return nil, err
			}
			agg.Outputs = append(agg.Outputs, AggregateOutput{Name: name, Func: f, Field: field})
		}
	}
	if err := agg.ValidateShape(); err != nil {
		return nil, err
	}
	return agg, nil
}

// decodeAggregateField accepts a field name, or for $count also true/"*"
// meaning "all rows".
func decodeAggregateField(raw json.RawMessage, f AggregateFunc) (string, error) {
	v, err := decodeScalar(raw)
	if err != nil {
		return "", err
	}
	switch val := v.(type) {
	case string:
		if val == "*" {
			if f != AggCount {
				return "", errMalformed("only $count may aggregate over all rows")
			}
			return "", nil
		}
		return val, nil
	case bool:
		if f == AggCount && val {
			return "", nil
		}
	case nil:
		if f == AggCount {
			return "", nil
		}
	}
	return "", errMalformed("aggregate function requires a field name")
}

// ParseSort decodes a priority-ordered sort array, e.g.
//
//	[{"field": "age", "direction": "desc"}, {"field": "name"}]
func ParseSort(raw []byte) (Sort, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var s Sort
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errMalformed("sort must be an array of {field, direction}")
	}
	for i := range s {
		s[i].Direction = SortDirection(strings.ToLower(string(s[i].Direction)))
		if s[i].Direction == "" {
			s[i].Direction = Asc
		}
	}
	if err := s.ValidateShape(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeObject(raw json.RawMessage, what string) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errMalformed(what + " must be a JSON object")
	}
	return doc, nil
}

func sortedKeys(doc map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
