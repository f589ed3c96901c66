package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/grobertson/Rosey-Robot-sub001/internal/schema"
)

// operandKind is the shape of a caller-supplied scalar before coercion.
type operandKind int

const (
	kindText operandKind = iota
	kindNumeric
	kindBoolean
	kindTemporal
	kindNull
)

func (k operandKind) String() string {
	switch k {
	case kindText:
		return "text"
	case kindNumeric:
		return "numeric"
	case kindBoolean:
		return "boolean"
	case kindTemporal:
		return "temporal"
	default:
		return "null"
	}
}

func kindOf(v any) (operandKind, bool) {
	switch v.(type) {
	case string:
		return kindText, true
	case json.Number, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return kindNumeric, true
	case bool:
		return kindBoolean, true
	case time.Time:
		return kindTemporal, true
	case nil:
		return kindNull, true
	default:
		return kindNull, false
	}
}

// coerceScalar converts a decoded scalar into the bindable Go value for the
// declared field type. JSON carries numbers as json.Number and timestamps
// as strings, so both need normalization before they hit the driver.
func coerceScalar(v any, ft schema.FieldType) (any, error) {
	kind, ok := kindOf(v)
	if !ok {
		return nil, fmt.Errorf("unsupported operand type %T", v)
	}
	switch ft {
	case schema.Text:
		if kind != kindText {
			return nil, fmt.Errorf("expected a string, got %s", kind)
		}
		return v, nil
	case schema.Numeric:
		if kind != kindNumeric {
			return nil, fmt.Errorf("expected a number, got %s", kind)
		}
		return normalizeNumber(v), nil
	case schema.Boolean:
		if kind != kindBoolean {
			return nil, fmt.Errorf("expected a boolean, got %s", kind)
		}
		return v, nil
	case schema.Temporal:
		return coerceTemporal(v, kind)
	case schema.Any:
		if kind == kindNumeric {
			return normalizeNumber(v), nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown field type %q", ft)
	}
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

var temporalLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTemporal(v any, kind operandKind) (any, error) {
	switch kind {
	case kindTemporal:
		return v, nil
	case kindText:
		s := v.(string)
		for _, layout := range temporalLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as a timestamp", s)
	default:
		return nil, fmt.Errorf("expected a timestamp, got %s", kind)
	}
}

// coerceList converts a non-empty scalar list into one homogeneous typed
// slice, bindable as a single array parameter.
func coerceList(values []any, ft schema.FieldType) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("requires a non-empty list")
	}
	coerced := make([]any, len(values))
	for i, v := range values {
		c, err := coerceScalar(v, ft)
		if err != nil {
			return nil, err
		}
		coerced[i] = c
	}
	switch coerced[0].(type) {
	case string:
		out := make([]string, len(coerced))
		for i, v := range coerced {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("list elements must share one type")
			}
			out[i] = s
		}
		return out, nil
	case bool:
		out := make([]bool, len(coerced))
		for i, v := range coerced {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("list elements must share one type")
			}
			out[i] = b
		}
		return out, nil
	case time.Time:
		out := make([]time.Time, len(coerced))
		for i, v := range coerced {
			t, ok := v.(time.Time)
			if !ok {
				return nil, fmt.Errorf("list elements must share one type")
			}
			out[i] = t
		}
		return out, nil
	default:
		// numeric list; normalize everything to float64 unless all integral
		allInts := true
		for _, v := range coerced {
			if _, ok := v.(int64); !ok {
				allInts = false
				break
			}
		}
		if allInts {
			out := make([]int64, len(coerced))
			for i, v := range coerced {
				out[i] = v.(int64)
			}
			return out, nil
		}
		out := make([]float64, len(coerced))
		for i, v := range coerced {
			switch n := v.(type) {
			case int64:
				out[i] = float64(n)
			case float64:
				out[i] = n
			case int:
				out[i] = float64(n)
			case float32:
				out[i] = float64(n)
			default:
				return nil, fmt.Errorf("list elements must share one type")
			}
		}
		return out, nil
	}
}
