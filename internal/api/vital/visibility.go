package vital

import "context"

// Visibility decides whether viewerID may read subjectID's readings. Family links live
// outside this service and plug in here.
type Visibility interface {
	CanView(ctx context.Context, viewerID, subjectID string) (bool, error)
}

// SelfOnly lets a subject read only their own readings.
type SelfOnly struct{}

func (SelfOnly) CanView(_ context.Context, viewerID, subjectID string) (bool, error) {
	return viewerID != "" && viewerID == subjectID, nil
}
