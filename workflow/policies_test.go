package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestZeroTolerancePolicy(t *testing.T) {
	declared := decimal.RequireFromString("100.00")
	counted := decimal.RequireFromString("100.01")

	exact := ZeroTolerancePolicy{}
	assert.True(t, exact.IsWithinTolerance(declared, declared))
	assert.False(t, exact.IsWithinTolerance(declared, counted))
	assert.False(t, exact.IsWithinTolerance(counted, declared))

	cent := ZeroTolerancePolicy{Threshold: decimal.RequireFromString("0.01")}
	assert.True(t, cent.IsWithinTolerance(declared, counted))
	assert.True(t, cent.IsWithinTolerance(counted, declared))
	assert.False(t, cent.IsWithinTolerance(declared, decimal.RequireFromString("100.02")))
}

func TestValueTypePolicies(t *testing.T) {
	collection := CollectionAllowedValueTypesPolicy{}
	for _, vt := range []models.ValueType{models.ValueTypeBill, models.ValueTypeCoin, models.ValueTypeCheck, models.ValueTypeDocument} {
		assert.True(t, collection.IsAllowed(vt), vt)
	}
	assert.False(t, collection.IsAllowed("Voucher"))

	provision := ProvisionAllowedValueTypesPolicy{}
	assert.True(t, provision.IsAllowed(models.ValueTypeBill))
	assert.True(t, provision.IsAllowed(models.ValueTypeCoin))
	assert.False(t, provision.IsAllowed(models.ValueTypeCheck))
	assert.False(t, provision.IsAllowed(models.ValueTypeDocument))
}

func TestContainerPolicies(t *testing.T) {
	cash := models.EnvelopeSubTypeCash
	check := models.EnvelopeSubTypeCheck
	unknown := models.EnvelopeSubType("Crate")

	collection := CollectionContainerPolicy{}
	assert.True(t, collection.IsAllowedContainer(models.ContainerTypeBag, nil))
	assert.False(t, collection.IsAllowedContainer(models.ContainerTypeBag, &cash))
	assert.True(t, collection.IsAllowedContainer(models.ContainerTypeEnvelope, nil))
	assert.True(t, collection.IsAllowedContainer(models.ContainerTypeEnvelope, &check))
	assert.False(t, collection.IsAllowedContainer(models.ContainerTypeEnvelope, &unknown))
	assert.False(t, collection.IsAllowedContainer("Box", nil))

	provision := ProvisionContainerPolicy{}
	assert.True(t, provision.IsAllowedContainer(models.ContainerTypeBag, nil))
	assert.True(t, provision.IsAllowedContainer(models.ContainerTypeEnvelope, &cash))
	assert.False(t, provision.IsAllowedContainer(models.ContainerTypeEnvelope, &check))
	assert.False(t, provision.IsAllowedContainer(models.ContainerTypeEnvelope, nil))
}

func TestCountingPolicyCreate(t *testing.T) {
	p := CountingPolicyFor(models.WorkflowCollection)

	assert.True(t, p.CanCreate("SO-1", "USD", decimal.NewFromInt(7500)))
	assert.True(t, p.CanCreate("SO-1", "USD", decimal.Zero))

	err := p.CheckCreate(" ", "", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, models.ErrPolicyRejected)
	assert.Contains(t, err.Error(), "service order id is required")
	assert.Contains(t, err.Error(), "currency is required")
	assert.Contains(t, err.Error(), "declared total must not be negative")
}

func TestCountingPolicyFinalizeAndApprove(t *testing.T) {
	collection := CountingPolicyFor(models.WorkflowCollection)
	snapshot := TransactionSnapshot{
		Workflow:           models.WorkflowCollection,
		Status:             string(models.CollectionConteo),
		TotalDeclaredValue: decimal.NewFromInt(7500),
		TotalCountedValue:  decimal.NewFromInt(8000),
	}
	assert.True(t, collection.CanFinalize(snapshot))
	assert.False(t, collection.CanApprove(snapshot))

	snapshot.Status = string(models.CollectionPendienteRevision)
	assert.False(t, collection.CanFinalize(snapshot))
	assert.True(t, collection.CanApprove(snapshot))

	snapshot.Workflow = models.WorkflowProvision
	assert.False(t, collection.CanApprove(snapshot))

	provision := CountingPolicyFor(models.WorkflowProvision)
	assert.Equal(t, string(models.ProvisionEnProceso), provision.InitialStatus())
	assert.True(t, provision.CanFinalize(TransactionSnapshot{
		Workflow: models.WorkflowProvision,
		Status:   string(models.ProvisionEnProceso),
	}))
	assert.True(t, provision.CanApprove(TransactionSnapshot{
		Workflow: models.WorkflowProvision,
		Status:   string(models.ProvisionListoParaEntrega),
	}))
}

func TestAcceptsContainers(t *testing.T) {
	open := []models.CollectionStatus{models.CollectionRegistradoTesoreria, models.CollectionEncoladoParaConteo, models.CollectionConteo}
	for _, s := range models.AllCollectionStatuses {
		want := false
		for _, o := range open {
			if o == s {
				want = true
			}
		}
		assert.Equal(t, want, acceptsContainers(TransactionSnapshot{Workflow: models.WorkflowCollection, Status: string(s)}), s)
	}

	assert.True(t, acceptsContainers(TransactionSnapshot{Workflow: models.WorkflowProvision, Status: string(models.ProvisionEnProceso)}))
	assert.False(t, acceptsContainers(TransactionSnapshot{Workflow: models.WorkflowProvision, Status: string(models.ProvisionListoParaEntrega)}))
}
