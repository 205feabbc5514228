package models

// ConditionLogic combines a rule's conditions.
const (
	ConditionLogicAnd = "AND"
	ConditionLogicOr  = "OR"
)

// Condition operators. The set is closed; an unknown operator never matches.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpIn          = "in"
	OpNotIn       = "not_in"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
)

// Condition is one predicate over a registration form field. Value holds a
// string, number or array depending on the operator.
type Condition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// KnownOperator reports whether op is in the closed operator set.
func KnownOperator(op string) bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpGreaterThan, OpLessThan, OpIn, OpNotIn, OpIsEmpty, OpIsNotEmpty:
		return true
	}
	return false
}
