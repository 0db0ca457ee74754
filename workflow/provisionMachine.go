package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
)

// ProvisionMachine is a strict linear pipeline with no cancellation path.
type ProvisionMachine struct{}

var provisionEdges = map[models.ProvisionStatus][]models.ProvisionStatus{
	models.ProvisionEnProceso:        {models.ProvisionListoParaEntrega},
	models.ProvisionListoParaEntrega: {models.ProvisionEntregado},
	models.ProvisionEntregado:        {},
}

func (ProvisionMachine) AllowedFrom(status models.ProvisionStatus) []models.ProvisionStatus {
	return provisionEdges[status]
}

func (ProvisionMachine) IsTerminal(status models.ProvisionStatus) bool {
	edges, ok := provisionEdges[status]
	return ok && len(edges) == 0
}

func (m ProvisionMachine) EnsureCanMove(current models.ProvisionStatus, next models.ProvisionStatus, transactionId int) error {
	if _, err := models.ParseProvisionStatus(string(current)); err != nil {
		return m.invalid(current, next, transactionId, err)
	}
	if _, err := models.ParseProvisionStatus(string(next)); err != nil {
		return m.invalid(current, next, transactionId, err)
	}
	for _, s := range provisionEdges[current] {
		if s == next {
			return nil
		}
	}
	return m.invalid(current, next, transactionId, nil)
}

func (m ProvisionMachine) invalid(current, next models.ProvisionStatus, transactionId int, cause error) error {
	allowed := make([]string, 0, len(provisionEdges[current]))
	for _, s := range provisionEdges[current] {
		allowed = append(allowed, string(s))
	}
	return &models.InvalidTransitionError{
		Entity:  "provision transaction",
		Id:      transactionId,
		Current: string(current),
		Target:  string(next),
		Allowed: allowed,
		Cause:   cause,
	}
}

func describeProvisionMove(from, to models.ProvisionStatus) string {
	return fmt.Sprintf("Provision status changed from %s to %s.", from, to)
}
