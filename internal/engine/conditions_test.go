package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventlane/backend/internal/models"
)

func TestEvaluateConditionsOperators(t *testing.T) {
	form := map[string]interface{}{
		"company":  "Acme GmbH",
		"role":     "student",
		"age":      float64(25),
		"country":  "DE",
		"days":     []interface{}{"friday", "saturday"},
		"comments": "",
	}

	tests := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"equals match", models.Condition{Field: "role", Operator: models.OpEquals, Value: "student"}, true},
		{"equals mismatch", models.Condition{Field: "role", Operator: models.OpEquals, Value: "professional"}, false},
		{"equals numeric string vs number", models.Condition{Field: "age", Operator: models.OpEquals, Value: "25"}, true},
		{"not_equals", models.Condition{Field: "role", Operator: models.OpNotEquals, Value: "professional"}, true},
		{"contains substring", models.Condition{Field: "company", Operator: models.OpContains, Value: "Acme"}, true},
		{"contains array membership", models.Condition{Field: "days", Operator: models.OpContains, Value: "friday"}, true},
		{"not_contains array", models.Condition{Field: "days", Operator: models.OpNotContains, Value: "sunday"}, true},
		{"greater_than numeric", models.Condition{Field: "age", Operator: models.OpGreaterThan, Value: float64(18)}, true},
		{"greater_than numeric false", models.Condition{Field: "age", Operator: models.OpGreaterThan, Value: float64(30)}, false},
		{"greater_than string fallback", models.Condition{Field: "role", Operator: models.OpGreaterThan, Value: "a"}, true},
		{"less_than numeric string", models.Condition{Field: "age", Operator: models.OpLessThan, Value: "30"}, true},
		{"in array", models.Condition{Field: "country", Operator: models.OpIn, Value: []interface{}{"DE", "AT", "CH"}}, true},
		{"in comma string", models.Condition{Field: "country", Operator: models.OpIn, Value: "DE, AT, CH"}, true},
		{"in miss", models.Condition{Field: "country", Operator: models.OpIn, Value: []interface{}{"FR", "IT"}}, false},
		{"not_in", models.Condition{Field: "country", Operator: models.OpNotIn, Value: []interface{}{"FR", "IT"}}, true},
		{"in with array field", models.Condition{Field: "days", Operator: models.OpIn, Value: []interface{}{"saturday"}}, true},
		{"is_empty on blank", models.Condition{Field: "comments", Operator: models.OpIsEmpty}, true},
		{"is_not_empty on blank", models.Condition{Field: "comments", Operator: models.OpIsNotEmpty}, false},
		{"is_not_empty on value", models.Condition{Field: "company", Operator: models.OpIsNotEmpty}, true},
		{"unknown operator never matches", models.Condition{Field: "role", Operator: "matches_regex", Value: ".*"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateConditions([]models.Condition{tt.cond}, models.ConditionLogicAnd, form)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateConditionsMissingField(t *testing.T) {
	form := map[string]interface{}{"present": "yes"}

	// Absence satisfies the negative operators and fails the rest.
	satisfied := []string{models.OpNotEquals, models.OpNotContains, models.OpNotIn, models.OpIsEmpty}
	for _, op := range satisfied {
		cond := models.Condition{Field: "missing", Operator: op, Value: "x"}
		assert.True(t, EvaluateConditions([]models.Condition{cond}, models.ConditionLogicAnd, form), op)
	}
	failed := []string{models.OpEquals, models.OpContains, models.OpIn, models.OpGreaterThan, models.OpLessThan, models.OpIsNotEmpty}
	for _, op := range failed {
		cond := models.Condition{Field: "missing", Operator: op, Value: "x"}
		assert.False(t, EvaluateConditions([]models.Condition{cond}, models.ConditionLogicAnd, form), op)
	}

	// Explicit nil behaves like a missing field.
	cond := models.Condition{Field: "nilval", Operator: models.OpIsEmpty}
	assert.True(t, EvaluateConditions([]models.Condition{cond}, models.ConditionLogicAnd, map[string]interface{}{"nilval": nil}))
}

func TestEvaluateConditionsLogic(t *testing.T) {
	form := map[string]interface{}{"role": "student", "country": "FR"}
	match := models.Condition{Field: "role", Operator: models.OpEquals, Value: "student"}
	miss := models.Condition{Field: "country", Operator: models.OpEquals, Value: "DE"}

	assert.True(t, EvaluateConditions([]models.Condition{match, match}, models.ConditionLogicAnd, form))
	assert.False(t, EvaluateConditions([]models.Condition{match, miss}, models.ConditionLogicAnd, form))
	assert.True(t, EvaluateConditions([]models.Condition{match, miss}, models.ConditionLogicOr, form))
	assert.False(t, EvaluateConditions([]models.Condition{miss, miss}, models.ConditionLogicOr, form))

	// Empty lists match under both logics.
	assert.True(t, EvaluateConditions(nil, models.ConditionLogicAnd, form))
	assert.True(t, EvaluateConditions(nil, models.ConditionLogicOr, form))
}

func TestEvaluateConditionsUntrustedInput(t *testing.T) {
	// Arbitrary field names and value shapes must not panic.
	form := map[string]interface{}{
		"weird": map[string]interface{}{"nested": true},
		"num":   42,
	}
	conds := []models.Condition{
		{Field: "weird", Operator: models.OpEquals, Value: []interface{}{1, 2}},
		{Field: "num", Operator: models.OpGreaterThan, Value: map[string]interface{}{"x": 1}},
		{Field: "", Operator: "", Value: nil},
	}
	assert.NotPanics(t, func() {
		EvaluateConditions(conds, models.ConditionLogicOr, form)
	})
}
