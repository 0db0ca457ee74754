package workflow_test

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"bitbucket.org/mmdatafocus/cashcenter_backend/models"
	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"bitbucket.org/mmdatafocus/cashcenter_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"
)

func setupMySQL(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()
	container, err := tcmysql.Run(ctx,
		"mysql:8.0.36",
		tcmysql.WithDatabase("cashcenter_test"),
		tcmysql.WithUsername("test"),
		tcmysql.WithPassword("test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "charset=utf8mb4", "loc=UTC")
	require.NoError(t, err)

	db, err := config.OpenDatabase(dsn)
	require.NoError(t, err)
	config.SetDB(db)
	require.NoError(t, models.MigrateTable())
	return db
}

func bill(unit string, qty int) models.NewValueDetail {
	u := decimal.RequireFromString(unit)
	return models.NewValueDetail{ValueType: models.ValueTypeBill, UnitValue: &u, Quantity: &qty}
}

func check(amount string) models.NewValueDetail {
	a := decimal.RequireFromString(amount)
	return models.NewValueDetail{ValueType: models.ValueTypeCheck, CalculatedAmount: &a}
}

func serviceProgress(t *testing.T, ctx context.Context, db *gorm.DB, id string) models.ServiceProgress {
	t.Helper()
	p, found, err := models.NewServiceOrderRepo(db).GetServiceProgress(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	return p
}

func TestIntegration_CollectionCountAndApprove(t *testing.T) {
	db := setupMySQL(t)

	ctx := context.Background()
	ctx = utils.SetBranchIdInContext(ctx, 1)
	ctx = utils.SetUserIdInContext(ctx, 9)
	ctx = utils.SetUserNameInContext(ctx, "Counter")

	require.NoError(t, db.WithContext(ctx).Create(&models.ServiceOrder{
		ID:       "SO-77",
		BranchId: 1,
		Progress: models.ServiceProgressConfirmed,
	}).Error)

	cc := workflow.NewCashCenter(db, config.GetLogger())
	cc.UseRedisLock = false
	cc.Tolerance = workflow.ZeroTolerancePolicy{}
	cc.RequireResolvedIncidents = true

	created, err := cc.CreateCashTransaction(ctx, &models.NewCashTransaction{
		BranchId:          1,
		ServiceOrderId:    "SO-77",
		Currency:          "USD",
		Workflow:          models.WorkflowCollection,
		DeclaredBillValue: decimal.NewFromInt(7500),
	})
	require.NoError(t, err)
	assert.Equal(t, string(models.CollectionRegistradoTesoreria), created.Status)
	// RegistradoTesoreria maps to 0 and must not regress the order.
	assert.Equal(t, models.ServiceProgressConfirmed, serviceProgress(t, ctx, db, "SO-77"))

	bag := models.NewContainer{ContainerCode: "B-1", ContainerType: models.ContainerTypeBag,
		ValueDetails: []models.NewValueDetail{bill("1000", 5)}}
	parent := "B-1"
	envelope := models.NewContainer{ContainerCode: "E-1", ContainerType: models.ContainerTypeEnvelope, ParentContainerCode: &parent,
		ValueDetails: []models.NewValueDetail{check("3000")}}

	totals, err := cc.SubmitContainers(ctx, created.ID, []models.NewContainer{bag, envelope}, 9)
	require.NoError(t, err)
	assert.True(t, totals.TotalCountedValue.Equal(decimal.NewFromInt(8000)), totals.TotalCountedValue.String())
	assert.True(t, totals.ValueDifference.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 1, totals.BagCount)
	assert.Equal(t, 1, totals.EnvelopeCount)

	// resubmitting with no lines clears the envelope
	emptied := envelope
	emptied.ValueDetails = nil
	totals, err = cc.SubmitContainers(ctx, created.ID, []models.NewContainer{emptied}, 9)
	require.NoError(t, err)
	assert.True(t, totals.TotalCountedValue.Equal(decimal.NewFromInt(5000)))
	require.Len(t, totals.Containers, 1)
	assert.Equal(t, models.ContainerStatusOpen, totals.Containers[0].Status)
	assert.True(t, totals.Containers[0].Subtotal.IsZero())

	_, err = cc.SubmitContainers(ctx, created.ID, []models.NewContainer{envelope}, 9)
	require.NoError(t, err)

	recalculated, err := cc.RecalculateTotals(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, recalculated.TotalCountedValue.Equal(decimal.NewFromInt(8000)))

	_, err = cc.EnqueueForCounting(ctx, created.ID)
	require.NoError(t, err)
	_, err = cc.StartCounting(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceProgressInProgress, serviceProgress(t, ctx, db, "SO-77"))

	incident, err := cc.RegisterIncident(ctx, &models.NewIncident{
		CashTransactionId: created.ID,
		Category:          models.IncidentOverage,
		AffectedAmount:    decimal.NewFromInt(700),
		Description:       "extra bundle of 1000s",
	}, 9)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusReported, incident.Status)

	containers, err := models.ListContainers(ctx, db, created.ID)
	require.NoError(t, err)
	containerIds := map[string]int{}
	var checkDetailId int
	for _, c := range containers {
		containerIds[c.Code] = c.ID
		if c.Code == "E-1" {
			require.Len(t, c.ValueDetails, 1)
			checkDetailId = c.ValueDetails[0].ID
		}
	}
	bagId, envelopeId := containerIds["B-1"], containerIds["E-1"]
	require.NotZero(t, bagId)
	require.NotZero(t, checkDetailId)

	damaged, err := cc.RegisterIncident(ctx, &models.NewIncident{
		CashTransactionId: created.ID,
		ValueDetailId:     &checkDetailId,
		Category:          models.IncidentDamaged,
		Description:       "torn check",
	}, 9)
	require.NoError(t, err)

	// resubmitting the envelope replaces its lines and moves the incident onto the envelope
	_, err = cc.SubmitContainers(ctx, created.ID, []models.NewContainer{envelope}, 9)
	require.NoError(t, err)
	moved, err := models.GetIncident(ctx, db, damaged.ID)
	require.NoError(t, err)
	assert.Nil(t, moved.ValueDetailId)
	require.NotNil(t, moved.ContainerId)
	assert.Equal(t, envelopeId, *moved.ContainerId)
	byEnvelope, err := models.ListIncidents(ctx, db, models.IncidentFilter{ContainerId: &envelopeId})
	require.NoError(t, err)
	require.Len(t, byEnvelope, 1)
	assert.Equal(t, damaged.ID, byEnvelope[0].ID)

	// a Reported incident can still be edited and withdrawn
	amount := decimal.NewFromInt(50)
	note := "torn check, partially legible"
	updated, err := cc.UpdateIncident(ctx, damaged.ID, &models.IncidentUpdate{AffectedAmount: &amount, Description: &note})
	require.NoError(t, err)
	assert.True(t, updated.AffectedAmount.Equal(amount))
	assert.Equal(t, note, updated.Description)
	deleted, err := cc.DeleteIncident(ctx, damaged.ID)
	require.NoError(t, err)
	assert.Equal(t, damaged.ID, deleted.ID)
	_, err = models.GetIncident(ctx, db, damaged.ID)
	assert.ErrorIs(t, err, models.ErrIncidentNotFound)

	shortage, err := cc.RegisterIncident(ctx, &models.NewIncident{
		CashTransactionId: created.ID,
		ContainerId:       &bagId,
		Category:          models.IncidentShortage,
		AffectedAmount:    decimal.NewFromInt(200),
		Description:       "two 100s missing from bag",
	}, 9)
	require.NoError(t, err)
	_, err = cc.ResolveIncident(ctx, shortage.ID, models.IncidentStatusApproved, 3)
	require.NoError(t, err)

	_, err = cc.FinalizeCounting(ctx, created.ID)
	require.NoError(t, err)

	_, err = cc.ApproveCollection(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrPendingIncidents)

	resolved, err := cc.ResolveIncident(ctx, incident.ID, models.IncidentStatusApproved, 3)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	approved, err := cc.ApproveCollection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.CollectionAprobado), approved.Status)
	assert.Equal(t, models.ServiceProgressCompleted, serviceProgress(t, ctx, db, "SO-77"))

	reconciliation, err := cc.Reconcile(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, reconciliation.ApprovedIncidentEffect.Equal(decimal.NewFromInt(-500)), reconciliation.ApprovedIncidentEffect.String())
	assert.True(t, reconciliation.AdjustedDifference.IsZero())
	assert.True(t, reconciliation.WithinTolerance)

	bagEffect, err := models.SumApprovedEffectByContainer(ctx, db, bagId)
	require.NoError(t, err)
	assert.True(t, bagEffect.Equal(decimal.NewFromInt(200)), bagEffect.String())
	envelopeEffect, err := models.SumApprovedEffectByContainer(ctx, db, envelopeId)
	require.NoError(t, err)
	assert.True(t, envelopeEffect.IsZero())

	description := "changed after approval"
	_, err = cc.UpdateIncident(ctx, incident.ID, &models.IncidentUpdate{Description: &description})
	assert.ErrorIs(t, err, models.ErrIncidentLocked)
	_, err = cc.DeleteIncident(ctx, incident.ID)
	assert.ErrorIs(t, err, models.ErrIncidentLocked)

	_, err = cc.StartCounting(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = cc.SubmitContainers(ctx, created.ID, []models.NewContainer{bag}, 9)
	assert.ErrorIs(t, err, models.ErrSubmissionNotAllowed)

	var events int64
	require.NoError(t, db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("publish_status = ?", models.OutboxPublishStatusPending).Count(&events).Error)
	assert.GreaterOrEqual(t, events, int64(6))

	publisher := &recordingPublisher{}
	dispatcher := workflow.NewOutboxDispatcher(db, config.GetLogger(), publisher)
	sent, err := dispatcher.DispatchOnce(utils.SetSkipBranchScopeInContext(context.Background(), true))
	require.NoError(t, err)
	assert.Equal(t, int(events), sent)
	assert.Len(t, publisher.messages, sent)
	for _, msg := range publisher.messages {
		assert.Equal(t, 1, msg.BranchId)
		assert.NotEmpty(t, msg.CorrelationId)
	}

	require.NoError(t, db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("publish_status = ?", models.OutboxPublishStatusSent).Count(&events).Error)
	assert.Equal(t, int64(sent), events)
}

type recordingPublisher struct {
	messages []config.PubSubMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg config.PubSubMessage) (string, error) {
	p.messages = append(p.messages, msg)
	return strconv.Itoa(msg.ID), nil
}

func TestIntegration_ProvisionRejectsChecksAndDelivers(t *testing.T) {
	db := setupMySQL(t)
	ctx := utils.SetBranchIdInContext(context.Background(), 2)

	cc := workflow.NewCashCenter(db, config.GetLogger())
	cc.UseRedisLock = false

	created, err := cc.CreateCashTransaction(ctx, &models.NewCashTransaction{
		BranchId:          2,
		ServiceOrderId:    "SO-P1",
		Currency:          "USD",
		Workflow:          models.WorkflowProvision,
		DeclaredBillValue: decimal.NewFromInt(2000),
	})
	require.NoError(t, err)
	assert.Equal(t, string(models.ProvisionEnProceso), created.Status)

	cash := models.EnvelopeSubTypeCash
	_, err = cc.SubmitContainers(ctx, created.ID, []models.NewContainer{{
		ContainerCode: "E-1", ContainerType: models.ContainerTypeEnvelope, EnvelopeSubType: &cash,
		ValueDetails: []models.NewValueDetail{check("2000")},
	}}, 1)
	assert.ErrorIs(t, err, models.ErrDisallowedValueType)

	_, err = cc.StartCounting(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrWorkflowMismatch)

	_, err = cc.SubmitContainers(ctx, created.ID, []models.NewContainer{{
		ContainerCode: "E-1", ContainerType: models.ContainerTypeEnvelope, EnvelopeSubType: &cash,
		ValueDetails: []models.NewValueDetail{bill("100", 20)},
	}}, 1)
	require.NoError(t, err)

	_, err = cc.Deliver(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = cc.MarkReadyForDelivery(ctx, created.ID)
	require.NoError(t, err)
	delivered, err := cc.Deliver(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.ProvisionEntregado), delivered.Status)

	stored, err := models.GetCashTransaction(ctx, db, created.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalCountedValue.Equal(decimal.NewFromInt(2000)))
	assert.WithinDuration(t, time.Now(), *stored.LastRecalculatedAt, time.Hour)
}

func TestIntegration_CollectionRejectAndCancel(t *testing.T) {
	db := setupMySQL(t)

	ctx := context.Background()
	ctx = utils.SetBranchIdInContext(ctx, 1)
	ctx = utils.SetUserIdInContext(ctx, 9)

	for _, id := range []string{"SO-80", "SO-81"} {
		require.NoError(t, db.WithContext(ctx).Create(&models.ServiceOrder{
			ID:       id,
			BranchId: 1,
			Progress: models.ServiceProgressConfirmed,
		}).Error)
	}

	cc := workflow.NewCashCenter(db, config.GetLogger())
	cc.UseRedisLock = false

	rejected, err := cc.CreateCashTransaction(ctx, &models.NewCashTransaction{
		BranchId:          1,
		ServiceOrderId:    "SO-80",
		Currency:          "USD",
		Workflow:          models.WorkflowCollection,
		DeclaredBillValue: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	_, err = cc.SubmitContainers(ctx, rejected.ID, []models.NewContainer{{
		ContainerCode: "B-9", ContainerType: models.ContainerTypeBag,
		ValueDetails: []models.NewValueDetail{bill("100", 10)},
	}}, 9)
	require.NoError(t, err)
	_, err = cc.EnqueueForCounting(ctx, rejected.ID)
	require.NoError(t, err)
	_, err = cc.StartCounting(ctx, rejected.ID)
	require.NoError(t, err)
	_, err = cc.FinalizeCounting(ctx, rejected.ID)
	require.NoError(t, err)

	result, err := cc.RejectCollection(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.CollectionRechazado), result.Status)
	assert.Equal(t, models.ServiceProgressRejected, serviceProgress(t, ctx, db, "SO-80"))

	_, err = cc.CancelCollection(ctx, rejected.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	cancelled, err := cc.CreateCashTransaction(ctx, &models.NewCashTransaction{
		BranchId:          1,
		ServiceOrderId:    "SO-81",
		Currency:          "USD",
		Workflow:          models.WorkflowCollection,
		DeclaredBillValue: decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	result, err = cc.CancelCollection(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.CollectionCancelado), result.Status)
	assert.Equal(t, models.ServiceProgressCancelled, serviceProgress(t, ctx, db, "SO-81"))
}
