package expr

import "fmt"

// ValidationKind classifies caller-correctable expression errors.
type ValidationKind string

const (
	KindUnknownTable    ValidationKind = "unknown_table"
	KindUnknownField    ValidationKind = "unknown_field"
	KindUnknownOperator ValidationKind = "unknown_operator"
	KindTypeMismatch    ValidationKind = "type_mismatch"
	KindMalformed       ValidationKind = "malformed_expression"
)

// ValidationError is returned for any structurally or type-invalid
// expression. It is always produced before any storage I/O.
type ValidationError struct {
	Kind     ValidationKind `json:"kind"`
	Field    string         `json:"field,omitempty"`
	Operator string         `json:"operator,omitempty"`
	Detail   string         `json:"detail"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Operator != "" {
		return fmt.Sprintf("%s: %s (field %q, operator %q)", e.Kind, e.Detail, e.Field, e.Operator)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q)", e.Kind, e.Detail, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// UnknownTable builds the validation error for an unregistered table.
func UnknownTable(table string) *ValidationError {
	return &ValidationError{Kind: KindUnknownTable, Detail: "table is not registered: " + table}
}

// UnknownField builds the validation error for an undeclared field.
func UnknownField(field string) *ValidationError {
	return &ValidationError{Kind: KindUnknownField, Field: field, Detail: "field is not declared in the table schema"}
}

// UnknownOperator builds the validation error for an unrecognized operator.
func UnknownOperator(op string) *ValidationError {
	return &ValidationError{Kind: KindUnknownOperator, Operator: op, Detail: "operator is not recognized"}
}

// TypeMismatch builds the validation error for an operator applied to an
// incompatible field or operand type.
func TypeMismatch(field, op, detail string) *ValidationError {
	return &ValidationError{Kind: KindTypeMismatch, Field: field, Operator: op, Detail: detail}
}

// Malformed builds the validation error for a structurally invalid
// expression shape.
func Malformed(detail string) *ValidationError {
	return &ValidationError{Kind: KindMalformed, Detail: detail}
}

func errUnknownOperator(op string) *ValidationError { return UnknownOperator(op) }

func errMalformed(detail string) *ValidationError { return Malformed(detail) }
