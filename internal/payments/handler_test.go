package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventlane/backend/internal/models"
)

func TestOutstanding(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		paid       int
		additional int
		want       int
	}{
		{"unpaid", 5000, 0, 0, 5000},
		{"partially paid", 5000, 2000, 0, 3000},
		{"fully paid", 5000, 5000, 0, 0},
		{"amendment balance after payment", 5000, 5000, 1500, 1500},
		{"overpaid floors at zero", 5000, 6000, 0, 0},
		{"overpayment absorbs amendment balance", 5000, 6500, 1000, 0},
		{"free registration", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &models.Registration{
				TotalAmountCents:         tt.total,
				PaidAmountCents:          tt.paid,
				AdditionalAmountDueCents: tt.additional,
			}
			assert.Equal(t, tt.want, Outstanding(reg))
		})
	}
}
