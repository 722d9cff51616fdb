package testutil

import (
	"context"
	"sync"

	"github.com/invopay/invopay/internal/domain/activity"
)

// InMemoryActivityRecorder implements activity.Observer, capturing records in
// order so tests can assert on what the lifecycle emitted.
type InMemoryActivityRecorder struct {
	mu      sync.Mutex
	records []*activity.Activity
}

// NewInMemoryActivityRecorder creates a new in-memory activity recorder
func NewInMemoryActivityRecorder() *InMemoryActivityRecorder {
	return &InMemoryActivityRecorder{}
}

func (r *InMemoryActivityRecorder) RecordActivity(ctx context.Context, a *activity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := *a
	r.records = append(r.records, &record)
	return nil
}

// Activities returns the captured records in recording order
func (r *InMemoryActivityRecorder) Activities() []*activity.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*activity.Activity, len(r.records))
	copy(out, r.records)
	return out
}

// ActivitiesFor returns the captured records for one invoice
func (r *InMemoryActivityRecorder) ActivitiesFor(invoiceID string) []*activity.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*activity.Activity
	for _, a := range r.records {
		if a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out
}

// Clear removes all captured records
func (r *InMemoryActivityRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}
