package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
)

// ServiceOrderStore reads and writes the progress code of an external
// service order. found is false when the order does not exist.
type ServiceOrderStore interface {
	GetServiceProgress(ctx context.Context, serviceOrderId string) (progress models.ServiceProgress, found bool, err error)
	SetServiceProgress(ctx context.Context, serviceOrderId string, progress models.ServiceProgress) error
}

// ShouldAdvanceService is the forward-only rule with terminal override:
// terminal codes are always written, as are writes over a terminal code,
// otherwise only strictly higher codes.
func ShouldAdvanceService(current models.ServiceProgress, mapped models.ServiceProgress) bool {
	if current == mapped {
		return false
	}
	if mapped.IsTerminal() || current.IsTerminal() {
		return true
	}
	return mapped > current
}

// SyncServiceIfAdvance propagates a Collection status to the service order.
// Missing mappings, missing orders and non-advancing codes are no-ops. It
// reports whether a write happened.
func SyncServiceIfAdvance(ctx context.Context, store ServiceOrderStore, serviceOrderId string, target models.CollectionStatus) (bool, error) {
	if serviceOrderId == "" {
		return false, nil
	}
	mapped, ok := MapServiceStatus(target)
	if !ok {
		return false, nil
	}
	current, found, err := store.GetServiceProgress(ctx, serviceOrderId)
	if err != nil {
		return false, err
	}
	if !found || !ShouldAdvanceService(current, mapped) {
		return false, nil
	}
	if err := store.SetServiceProgress(ctx, serviceOrderId, mapped); err != nil {
		return false, err
	}
	return true, nil
}
