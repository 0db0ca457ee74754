package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
)

// CollectionMachine validates status moves of Collection transactions. It has
// no side effects; callers persist the new status themselves.
type CollectionMachine struct{}

var collectionEdges = map[models.CollectionStatus][]models.CollectionStatus{
	models.CollectionRegistradoTesoreria: {models.CollectionEncoladoParaConteo, models.CollectionCancelado},
	models.CollectionEncoladoParaConteo:  {models.CollectionConteo, models.CollectionCancelado},
	models.CollectionConteo:              {models.CollectionPendienteRevision, models.CollectionCancelado},
	models.CollectionPendienteRevision:   {models.CollectionAprobado, models.CollectionRechazado, models.CollectionCancelado},
	models.CollectionAprobado:            {},
	models.CollectionRechazado:           {},
	models.CollectionCancelado:           {},
}

func (CollectionMachine) AllowedFrom(status models.CollectionStatus) []models.CollectionStatus {
	return collectionEdges[status]
}

func (m CollectionMachine) IsTerminal(status models.CollectionStatus) bool {
	edges, ok := collectionEdges[status]
	return ok && len(edges) == 0
}

// EnsureCanMove returns an *InvalidTransitionError when either status is
// outside the Collection vocabulary or next is not reachable from current in
// one step.
func (m CollectionMachine) EnsureCanMove(current models.CollectionStatus, next models.CollectionStatus, transactionId int) error {
	if _, err := models.ParseCollectionStatus(string(current)); err != nil {
		return m.invalid(current, next, transactionId, err)
	}
	if _, err := models.ParseCollectionStatus(string(next)); err != nil {
		return m.invalid(current, next, transactionId, err)
	}
	for _, s := range collectionEdges[current] {
		if s == next {
			return nil
		}
	}
	return m.invalid(current, next, transactionId, nil)
}

func (m CollectionMachine) invalid(current, next models.CollectionStatus, transactionId int, cause error) error {
	allowed := make([]string, 0, len(collectionEdges[current]))
	for _, s := range collectionEdges[current] {
		allowed = append(allowed, string(s))
	}
	return &models.InvalidTransitionError{
		Entity:  "collection transaction",
		Id:      transactionId,
		Current: string(current),
		Target:  string(next),
		Allowed: allowed,
		Cause:   cause,
	}
}

// MapServiceStatus maps a Collection status to the progress code of the
// external service order. ok is false for statuses without a mapping.
func MapServiceStatus(status models.CollectionStatus) (progress models.ServiceProgress, ok bool) {
	switch status {
	case models.CollectionRegistradoTesoreria:
		return models.ServiceProgressRequested, true
	case models.CollectionEncoladoParaConteo:
		return models.ServiceProgressConfirmed, true
	case models.CollectionConteo, models.CollectionPendienteRevision:
		return models.ServiceProgressInProgress, true
	case models.CollectionAprobado:
		return models.ServiceProgressCompleted, true
	case models.CollectionRechazado:
		return models.ServiceProgressRejected, true
	case models.CollectionCancelado:
		return models.ServiceProgressCancelled, true
	default:
		return 0, false
	}
}

func collectionStatusOf(t *models.CashTransaction) models.CollectionStatus {
	return models.CollectionStatus(t.Status)
}

func describeCollectionMove(from, to models.CollectionStatus) string {
	return fmt.Sprintf("Collection status changed from %s to %s.", from, to)
}
