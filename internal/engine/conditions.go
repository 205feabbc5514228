package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/eventlane/backend/internal/models"
)

// EvaluateConditions reports whether formData satisfies the condition list
// under the given logic. An empty list matches under both AND and OR. Safe
// to call with untrusted field names and values; it never panics and never
// returns an error.
func EvaluateConditions(conds []models.Condition, logic string, formData map[string]interface{}) bool {
	if len(conds) == 0 {
		return true
	}
	if logic == models.ConditionLogicOr {
		for _, c := range conds {
			if evalCondition(c, formData) {
				return true
			}
		}
		return false
	}
	for _, c := range conds {
		if !evalCondition(c, formData) {
			return false
		}
	}
	return true
}

// evalCondition applies one operator. A missing field satisfies only the
// negative operators (not_equals, not_contains, not_in, is_empty); an
// unknown operator never matches.
func evalCondition(c models.Condition, formData map[string]interface{}) bool {
	raw, present := formData[c.Field]
	if !present || raw == nil {
		switch c.Operator {
		case models.OpNotEquals, models.OpNotContains, models.OpNotIn, models.OpIsEmpty:
			return true
		default:
			return false
		}
	}
	switch c.Operator {
	case models.OpEquals:
		return valuesEqual(raw, c.Value)
	case models.OpNotEquals:
		return !valuesEqual(raw, c.Value)
	case models.OpContains:
		return valueContains(raw, c.Value)
	case models.OpNotContains:
		return !valueContains(raw, c.Value)
	case models.OpGreaterThan:
		return compareValues(raw, c.Value) > 0
	case models.OpLessThan:
		return compareValues(raw, c.Value) < 0
	case models.OpIn:
		return valueIn(raw, c.Value)
	case models.OpNotIn:
		return !valueIn(raw, c.Value)
	case models.OpIsEmpty:
		return isEmptyValue(raw)
	case models.OpIsNotEmpty:
		return !isEmptyValue(raw)
	default:
		return false
	}
}

// asString renders a scalar form or condition value for comparison.
func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// asNumber parses a value as a float64 when possible.
func asNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// valuesEqual compares numerically when both sides parse as numbers,
// otherwise as strings. "25" therefore equals 25.
func valuesEqual(a, b interface{}) bool {
	if fa, okA := asNumber(a); okA {
		if fb, okB := asNumber(b); okB {
			return fa == fb
		}
	}
	return asString(a) == asString(b)
}

// compareValues orders two values: numeric when both sides parse,
// lexicographic otherwise.
func compareValues(a, b interface{}) int {
	if fa, okA := asNumber(a); okA {
		if fb, okB := asNumber(b); okB {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(asString(a), asString(b))
}

// toSlice unwraps array-shaped form values.
func toSlice(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// valueContains is membership for array fields and substring for scalars.
func valueContains(field, want interface{}) bool {
	if arr, ok := toSlice(field); ok {
		for _, el := range arr {
			if valuesEqual(el, want) {
				return true
			}
		}
		return false
	}
	return strings.Contains(asString(field), asString(want))
}

// valueIn tests the field against a condition value set, given as an array
// or a comma-separated string. Array fields match when any element is in
// the set.
func valueIn(field, set interface{}) bool {
	options, ok := toSlice(set)
	if !ok {
		for _, part := range strings.Split(asString(set), ",") {
			options = append(options, strings.TrimSpace(part))
		}
	}
	if arr, isArr := toSlice(field); isArr {
		for _, el := range arr {
			for _, opt := range options {
				if valuesEqual(el, opt) {
					return true
				}
			}
		}
		return false
	}
	for _, opt := range options {
		if valuesEqual(field, opt) {
			return true
		}
	}
	return false
}

// isEmptyValue treats blank strings and empty arrays as empty.
func isEmptyValue(v interface{}) bool {
	if arr, ok := toSlice(v); ok {
		return len(arr) == 0
	}
	return strings.TrimSpace(asString(v)) == ""
}
