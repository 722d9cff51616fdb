package activity

import "context"

// Observer receives invoice lifecycle activity. Implementations are external
// collaborators (audit log storage, event buses); a failing observer must
// never fail the operation that produced the activity, so callers log and
// continue.
type Observer interface {
	RecordActivity(ctx context.Context, a *Activity) error
}

type nopObserver struct{}

// NopObserver returns an Observer that discards all activity
func NopObserver() Observer {
	return nopObserver{}
}

func (nopObserver) RecordActivity(ctx context.Context, a *Activity) error {
	return nil
}
