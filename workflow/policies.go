package workflow

import (
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"github.com/shopspring/decimal"
)

type TolerancePolicy interface {
	IsWithinTolerance(declared decimal.Decimal, counted decimal.Decimal) bool
}

// ZeroTolerancePolicy accepts |declared - counted| <= Threshold. The zero
// value requires an exact match.
type ZeroTolerancePolicy struct {
	Threshold decimal.Decimal
}

func NewZeroTolerancePolicy() ZeroTolerancePolicy {
	return ZeroTolerancePolicy{Threshold: config.ToleranceThreshold()}
}

func (p ZeroTolerancePolicy) IsWithinTolerance(declared decimal.Decimal, counted decimal.Decimal) bool {
	return declared.Sub(counted).Abs().LessThanOrEqual(p.Threshold)
}

// CollectionAllowedValueTypesPolicy admits every value type.
type CollectionAllowedValueTypesPolicy struct{}

func (CollectionAllowedValueTypesPolicy) IsAllowed(valueType models.ValueType) bool {
	switch valueType {
	case models.ValueTypeBill, models.ValueTypeCoin, models.ValueTypeCheck, models.ValueTypeDocument:
		return true
	default:
		return false
	}
}

// ProvisionAllowedValueTypesPolicy admits bills and coins only.
type ProvisionAllowedValueTypesPolicy struct{}

func (ProvisionAllowedValueTypesPolicy) IsAllowed(valueType models.ValueType) bool {
	return valueType == models.ValueTypeBill || valueType == models.ValueTypeCoin
}

// CollectionContainerPolicy admits bags and envelopes of any sub type.
// Sub types are meaningful only for envelopes.
type CollectionContainerPolicy struct{}

func (CollectionContainerPolicy) IsAllowedContainer(containerType models.ContainerType, subType *models.EnvelopeSubType) bool {
	switch containerType {
	case models.ContainerTypeBag:
		return subType == nil
	case models.ContainerTypeEnvelope:
		if subType == nil {
			return true
		}
		_, err := models.ParseEnvelopeSubType(string(*subType))
		return err == nil
	default:
		return false
	}
}

// ProvisionContainerPolicy admits bags and cash envelopes.
type ProvisionContainerPolicy struct{}

func (ProvisionContainerPolicy) IsAllowedContainer(containerType models.ContainerType, subType *models.EnvelopeSubType) bool {
	switch containerType {
	case models.ContainerTypeBag:
		return subType == nil
	case models.ContainerTypeEnvelope:
		return subType != nil && *subType == models.EnvelopeSubTypeCash
	default:
		return false
	}
}

func valuePoliciesFor(workflow models.WorkflowKind) (models.ValueTypePolicy, models.ContainerPolicy) {
	if workflow == models.WorkflowProvision {
		return ProvisionAllowedValueTypesPolicy{}, ProvisionContainerPolicy{}
	}
	return CollectionAllowedValueTypesPolicy{}, CollectionContainerPolicy{}
}

// TransactionSnapshot is the read-only view the counting policy works on.
type TransactionSnapshot struct {
	Workflow           models.WorkflowKind
	Status             string
	TotalDeclaredValue decimal.Decimal
	TotalCountedValue  decimal.Decimal
}

func SnapshotOf(t *models.CashTransaction) TransactionSnapshot {
	return TransactionSnapshot{
		Workflow:           t.Workflow,
		Status:             t.Status,
		TotalDeclaredValue: t.TotalDeclaredValue,
		TotalCountedValue:  t.TotalCountedValue,
	}
}

// CountingPolicy holds the creation, finalization and approval
// preconditions of one workflow.
type CountingPolicy struct {
	Workflow models.WorkflowKind
}

func CountingPolicyFor(workflow models.WorkflowKind) CountingPolicy {
	return CountingPolicy{Workflow: workflow}
}

func (p CountingPolicy) InitialStatus() string {
	if p.Workflow == models.WorkflowProvision {
		return string(models.ProvisionEnProceso)
	}
	return string(models.CollectionRegistradoTesoreria)
}

func (p CountingPolicy) CountingStatus() string {
	if p.Workflow == models.WorkflowProvision {
		return string(models.ProvisionEnProceso)
	}
	return string(models.CollectionConteo)
}

func (p CountingPolicy) ReviewStatus() string {
	if p.Workflow == models.WorkflowProvision {
		return string(models.ProvisionListoParaEntrega)
	}
	return string(models.CollectionPendienteRevision)
}

// CheckCreate explains why CanCreate is false, wrapped in ErrPolicyRejected.
func (p CountingPolicy) CheckCreate(serviceOrderId string, currency string, declaredTotal decimal.Decimal) error {
	var reasons []string
	if strings.TrimSpace(serviceOrderId) == "" {
		reasons = append(reasons, "service order id is required")
	}
	if strings.TrimSpace(currency) == "" {
		reasons = append(reasons, "currency is required")
	}
	if declaredTotal.IsNegative() {
		reasons = append(reasons, "declared total must not be negative")
	}
	if len(reasons) > 0 {
		return fmt.Errorf("%w: %s", models.ErrPolicyRejected, strings.Join(reasons, "; "))
	}
	return nil
}

func (p CountingPolicy) CanCreate(serviceOrderId string, currency string, declaredTotal decimal.Decimal) bool {
	return p.CheckCreate(serviceOrderId, currency, declaredTotal) == nil
}

func (p CountingPolicy) CanFinalize(t TransactionSnapshot) bool {
	return t.Workflow == p.Workflow && !t.TotalCountedValue.IsNegative() && t.Status == p.CountingStatus()
}

func (p CountingPolicy) CanApprove(t TransactionSnapshot) bool {
	return t.Workflow == p.Workflow && t.Status == p.ReviewStatus()
}

// acceptsContainers reports whether containers may still be submitted in the
// transaction's current status.
func acceptsContainers(t TransactionSnapshot) bool {
	switch t.Workflow {
	case models.WorkflowCollection:
		switch models.CollectionStatus(t.Status) {
		case models.CollectionRegistradoTesoreria, models.CollectionEncoladoParaConteo, models.CollectionConteo:
			return true
		}
	case models.WorkflowProvision:
		return models.ProvisionStatus(t.Status) == models.ProvisionEnProceso
	}
	return false
}
