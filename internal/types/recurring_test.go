package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBillingDate(t *testing.T) {
	from := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		frequency RecurringFrequency
		interval  int
		want      time.Time
	}{
		{"daily", RecurringFrequencyDaily, 1, from.AddDate(0, 0, 1)},
		{"every three days", RecurringFrequencyDaily, 3, from.AddDate(0, 0, 3)},
		{"weekly", RecurringFrequencyWeekly, 1, from.AddDate(0, 0, 7)},
		{"monthly", RecurringFrequencyMonthly, 1, from.AddDate(0, 1, 0)},
		{"quarterly", RecurringFrequencyMonthly, 3, from.AddDate(0, 3, 0)},
		{"yearly", RecurringFrequencyYearly, 1, from.AddDate(1, 0, 0)},
		{"unknown falls back to monthly", RecurringFrequency("fortnightly"), 1, from.AddDate(0, 1, 0)},
		{"non positive interval clamps to one", RecurringFrequencyDaily, 0, from.AddDate(0, 0, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.frequency.NextBillingDate(from, tt.interval))
		})
	}
}

func TestRecurringFrequencyIsValid(t *testing.T) {
	assert.True(t, RecurringFrequencyMonthly.IsValid())
	assert.True(t, RecurringFrequencyDaily.IsValid())
	assert.False(t, RecurringFrequency("fortnightly").IsValid())
}
