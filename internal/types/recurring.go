package types

import (
	"time"

	"github.com/samber/lo"
)

// RecurringFrequency defines the billing cycle unit for recurring invoices
type RecurringFrequency string

const (
	RecurringFrequencyDaily   RecurringFrequency = "daily"
	RecurringFrequencyWeekly  RecurringFrequency = "weekly"
	RecurringFrequencyMonthly RecurringFrequency = "monthly"
	RecurringFrequencyYearly  RecurringFrequency = "yearly"
)

func (f RecurringFrequency) String() string {
	return string(f)
}

// IsValid reports whether the frequency is one of the recognized cycle units.
// Unrecognized frequencies are not rejected at build time; NextBillingDate
// falls back to a monthly cycle for them.
func (f RecurringFrequency) IsValid() bool {
	allowed := []RecurringFrequency{
		RecurringFrequencyDaily,
		RecurringFrequencyWeekly,
		RecurringFrequencyMonthly,
		RecurringFrequencyYearly,
	}
	return lo.Contains(allowed, f)
}

// NextBillingDate advances from the given instant by interval cycle units.
// An unrecognized frequency or a non-positive interval advances by one month.
func (f RecurringFrequency) NextBillingDate(from time.Time, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}

	switch f {
	case RecurringFrequencyDaily:
		return from.AddDate(0, 0, interval)
	case RecurringFrequencyWeekly:
		return from.AddDate(0, 0, 7*interval)
	case RecurringFrequencyMonthly:
		return from.AddDate(0, interval, 0)
	case RecurringFrequencyYearly:
		return from.AddDate(interval, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}
