package extinguishers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyExpiry(t *testing.T) {
	today := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		raw       string
		wantClass ExpiryClass
		wantDays  int
	}{
		{"empty is unknown", "", ExpiryUnknown, 0},
		{"garbage is unknown", "proximamente", ExpiryUnknown, 0},
		{"long expired month", "01/2020", ExpiryExpired, 1962},
		{"expired exact day", "14/06/2025", ExpiryExpired, 1},
		{"expires today", "15/06/2025", ExpirySoon, 0},
		{"within thirty days", "10/07/2025", ExpirySoon, 25},
		{"boundary thirty days", "15/07/2025", ExpirySoon, 30},
		{"within ninety days", "01/09/2025", ExpiryLater, 78},
		{"far future", "31/12/2099", ExpiryCurrent, 27227},
		{"month format reads last day", "06/2025", ExpirySoon, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyExpiry(tt.raw, today)
			assert.Equal(t, tt.wantClass, got.Class)
			assert.Equal(t, tt.wantDays, got.Days)
		})
	}
}

func TestClassifyExpiryIsPure(t *testing.T) {
	today := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	first := ClassifyExpiry("01/2020", today)
	second := ClassifyExpiry("01/2020", today)
	assert.Equal(t, first, second)
}
