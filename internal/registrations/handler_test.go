package registrations

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/eventlane/backend/internal/engine"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func TestNormalizeCodes(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"uppercases and trims", []string{" early10 ", "Sponsor-X"}, []string{"EARLY10", "SPONSOR-X"}},
		{"drops blanks", []string{"", "  ", "OK"}, []string{"OK"}},
		{"keeps duplicates for the engine to dedupe", []string{"A", "a"}, []string{"A", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCodes(tt.in))
		})
	}
}

func TestWriteEngineErrorStatuses(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}
	itemID := uuid.New()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation issues", &engine.ValidationError{Issues: []engine.ValidationIssue{
			{Code: engine.IssueMissingPrerequisite, AccessItemID: &itemID, Message: "requires Conference Pass"},
		}}, http.StatusUnprocessableEntity},
		{"capacity exhausted", &engine.CapacityError{ItemID: uuid.New(), Name: "Workshop A", Requested: 1, Remaining: 0}, http.StatusConflict},
		{"not found", engine.ErrNotFound, http.StatusNotFound},
		{"registration closed", engine.ErrRegistrationClosed, http.StatusConflict},
		{"refunded", engine.ErrRegistrationRefunded, http.StatusConflict},
		{"removal blocked", engine.ErrAccessRemovalBlocked, http.StatusConflict},
		{"duplicate idempotency key", engine.ErrDuplicateKey, http.StatusConflict},
		{"wrapped sentinel still maps", fmt.Errorf("create registration: %w", engine.ErrRegistrationClosed), http.StatusConflict},
		{"unknown errors are internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			h.writeEngineError(c, tt.err, "not found")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWriteEngineErrorValidationPayload(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	itemID := uuid.New()
	h.writeEngineError(c, &engine.ValidationError{Issues: []engine.ValidationIssue{
		{Code: engine.IssueTimeConflict, AccessItemID: &itemID, Message: "overlaps another selection"},
	}}, "not found")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"issues"`)
	assert.Contains(t, w.Body.String(), engine.IssueTimeConflict)
	assert.Contains(t, w.Body.String(), itemID.String())
}
