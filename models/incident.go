package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cashcenter_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Incident is a discrepancy reported against a transaction and optionally one
// of its containers or value details.
type Incident struct {
	ID                   int              `gorm:"primary_key" json:"id"`
	CashTransactionId    int              `gorm:"index;not null;index:idx_incident_tx_status,priority:1" json:"cash_transaction_id"`
	ContainerId          *int             `gorm:"index" json:"container_id"`
	ValueDetailId        *int             `gorm:"index" json:"value_detail_id"`
	Category             IncidentCategory `gorm:"size:32;not null" json:"category"`
	Status               IncidentStatus   `gorm:"size:20;not null;default:'Reported';index:idx_incident_tx_status,priority:2" json:"status"`
	ReportedBy           int              `gorm:"index;not null" json:"reported_by"`
	ResolvedBy           *int             `json:"resolved_by"`
	AffectedAmount       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"affected_amount"`
	AffectedDenomination *decimal.Decimal `gorm:"type:decimal(20,4)" json:"affected_denomination"`
	AffectedQuantity     *int             `json:"affected_quantity"`
	Description          string           `gorm:"type:text" json:"description"`
	ResolvedAt           *time.Time       `json:"resolved_at"`
	CreatedAt            time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// Effect is AffectedAmount times the category sign.
func (i Incident) Effect() (decimal.Decimal, error) {
	sign, err := i.Category.Sign()
	if err != nil {
		return decimal.Zero, err
	}
	return i.AffectedAmount.Mul(decimal.NewFromInt(int64(sign))), nil
}

type NewIncident struct {
	CashTransactionId    int              `json:"cash_transaction_id" validate:"required,gt=0"`
	ContainerId          *int             `json:"container_id" validate:"omitempty,gt=0"`
	ValueDetailId        *int             `json:"value_detail_id" validate:"omitempty,gt=0"`
	Category             IncidentCategory `json:"category" validate:"required"`
	AffectedAmount       decimal.Decimal  `json:"affected_amount"`
	AffectedDenomination *decimal.Decimal `json:"affected_denomination"`
	AffectedQuantity     *int             `json:"affected_quantity" validate:"omitempty,gte=0"`
	Description          string           `json:"description" validate:"max=2000"`
}

type IncidentUpdate struct {
	Category             *IncidentCategory `json:"category"`
	AffectedAmount       *decimal.Decimal  `json:"affected_amount"`
	AffectedDenomination *decimal.Decimal  `json:"affected_denomination"`
	AffectedQuantity     *int              `json:"affected_quantity" validate:"omitempty,gte=0"`
	Description          *string           `json:"description" validate:"omitempty,max=2000"`
}

var errNegativeAffectedAmount = errors.New("affected amount must not be negative")

// RegisterIncident creates an incident in Reported status after checking that
// every referenced entity exists and belongs to the transaction.
func RegisterIncident(ctx context.Context, db *gorm.DB, input *NewIncident, reporterId int) (*Incident, error) {
	if _, err := input.Category.Sign(); err != nil {
		return nil, err
	}
	if input.AffectedAmount.IsNegative() {
		return nil, errNegativeAffectedAmount
	}

	count, err := utils.ResourceCountWhere[CashTransaction](ctx, db, "id = ?", input.CashTransactionId)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrTransactionNotFound
	}

	if input.ContainerId != nil {
		count, err = utils.ResourceCountWhere[Container](ctx, db, "id = ? AND cash_transaction_id = ?", *input.ContainerId, input.CashTransactionId)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrContainerNotFound
		}
	}

	if input.ValueDetailId != nil {
		if input.ContainerId != nil {
			count, err = utils.ResourceCountWhere[ValueDetail](ctx, db, "id = ? AND cash_transaction_id = ? AND container_id = ?", *input.ValueDetailId, input.CashTransactionId, *input.ContainerId)
		} else {
			count, err = utils.ResourceCountWhere[ValueDetail](ctx, db, "id = ? AND cash_transaction_id = ?", *input.ValueDetailId, input.CashTransactionId)
		}
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrValueDetailNotFound
		}
	}

	incident := Incident{
		CashTransactionId:    input.CashTransactionId,
		ContainerId:          input.ContainerId,
		ValueDetailId:        input.ValueDetailId,
		Category:             input.Category,
		Status:               IncidentStatusReported,
		ReportedBy:           reporterId,
		AffectedAmount:       input.AffectedAmount,
		AffectedDenomination: input.AffectedDenomination,
		AffectedQuantity:     input.AffectedQuantity,
		Description:          input.Description,
	}
	if err := db.WithContext(ctx).Create(&incident).Error; err != nil {
		return nil, err
	}
	return &incident, nil
}

func GetIncident(ctx context.Context, db *gorm.DB, id int) (*Incident, error) {
	incident, err := utils.FetchModel[Incident](ctx, db, id)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, ErrIncidentNotFound
	}
	return incident, err
}

func lockIncident(ctx context.Context, db *gorm.DB, id int) (*Incident, error) {
	var incident Incident
	err := db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&incident, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

var incidentResolutions = map[IncidentStatus][]IncidentStatus{
	IncidentStatusReported: {IncidentStatusAdjusted, IncidentStatusApproved, IncidentStatusRejected},
	IncidentStatusAdjusted: {IncidentStatusApproved, IncidentStatusRejected},
}

// AllowedIncidentResolutions lists the statuses an incident may move to.
func AllowedIncidentResolutions(from IncidentStatus) []IncidentStatus {
	return incidentResolutions[from]
}

// ValidateIncidentResolution fails with an *InvalidTransitionError unless
// from -> to is a resolution edge.
func ValidateIncidentResolution(id int, from IncidentStatus, to IncidentStatus) error {
	allowed := incidentResolutions[from]
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return &InvalidTransitionError{
		Entity:  "incident",
		Id:      id,
		Current: string(from),
		Target:  string(to),
		Allowed: names,
	}
}

// ResolveIncident moves an incident along a resolution edge and stamps the
// resolver. It returns the incident as it was before and after the change.
func ResolveIncident(ctx context.Context, db *gorm.DB, id int, newStatus IncidentStatus, resolverId int) (before *Incident, after *Incident, err error) {
	incident, err := lockIncident(ctx, db, id)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateIncidentResolution(id, incident.Status, newStatus); err != nil {
		return nil, nil, err
	}
	old := *incident

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(incident).Updates(map[string]interface{}{
		"status":      newStatus,
		"resolved_by": resolverId,
		"resolved_at": now,
	}).Error; err != nil {
		return nil, nil, err
	}
	incident.Status = newStatus
	incident.ResolvedBy = &resolverId
	incident.ResolvedAt = &now
	return &old, incident, nil
}

// UpdateIncident changes an incident still in Reported status.
func UpdateIncident(ctx context.Context, db *gorm.DB, id int, input *IncidentUpdate) (*Incident, error) {
	incident, err := lockIncident(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if incident.Status != IncidentStatusReported {
		return nil, ErrIncidentLocked
	}

	updates := map[string]interface{}{}
	if input.Category != nil {
		if _, err := input.Category.Sign(); err != nil {
			return nil, err
		}
		updates["category"] = *input.Category
		incident.Category = *input.Category
	}
	if input.AffectedAmount != nil {
		if input.AffectedAmount.IsNegative() {
			return nil, errNegativeAffectedAmount
		}
		updates["affected_amount"] = *input.AffectedAmount
		incident.AffectedAmount = *input.AffectedAmount
	}
	if input.AffectedDenomination != nil {
		updates["affected_denomination"] = *input.AffectedDenomination
		incident.AffectedDenomination = input.AffectedDenomination
	}
	if input.AffectedQuantity != nil {
		updates["affected_quantity"] = *input.AffectedQuantity
		incident.AffectedQuantity = input.AffectedQuantity
	}
	if input.Description != nil {
		updates["description"] = *input.Description
		incident.Description = *input.Description
	}
	if len(updates) == 0 {
		return incident, nil
	}
	if err := db.WithContext(ctx).Model(&Incident{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return incident, nil
}

// DeleteIncident removes an incident still in Reported status.
func DeleteIncident(ctx context.Context, db *gorm.DB, id int) (*Incident, error) {
	incident, err := lockIncident(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if incident.Status != IncidentStatusReported {
		return nil, ErrIncidentLocked
	}
	if err := db.WithContext(ctx).Delete(&Incident{}, id).Error; err != nil {
		return nil, err
	}
	return incident, nil
}

// SumApprovedEffect sums the signed effect of the Approved incidents in
// incidents; other statuses are ignored.
func SumApprovedEffect(incidents []Incident) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, i := range incidents {
		if i.Status != IncidentStatusApproved {
			continue
		}
		effect, err := i.Effect()
		if err != nil {
			return decimal.Zero, fmt.Errorf("incident %d: %w", i.ID, err)
		}
		total = total.Add(effect)
	}
	return total, nil
}

func SumApprovedEffectByTransaction(ctx context.Context, db *gorm.DB, transactionId int) (decimal.Decimal, error) {
	var incidents []Incident
	if err := db.WithContext(ctx).
		Where("cash_transaction_id = ? AND status = ?", transactionId, IncidentStatusApproved).
		Find(&incidents).Error; err != nil {
		return decimal.Zero, err
	}
	return SumApprovedEffect(incidents)
}

func SumApprovedEffectByContainer(ctx context.Context, db *gorm.DB, containerId int) (decimal.Decimal, error) {
	var incidents []Incident
	if err := db.WithContext(ctx).
		Where("container_id = ? AND status = ?", containerId, IncidentStatusApproved).
		Find(&incidents).Error; err != nil {
		return decimal.Zero, err
	}
	return SumApprovedEffect(incidents)
}

// HasPendingByTransaction reports whether any incident of the transaction is
// still Reported or Adjusted.
func HasPendingByTransaction(ctx context.Context, db *gorm.DB, transactionId int) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&Incident{}).
		Where("cash_transaction_id = ? AND status IN ?", transactionId, []IncidentStatus{IncidentStatusReported, IncidentStatusAdjusted}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type IncidentFilter struct {
	CashTransactionId *int
	ContainerId       *int
	ValueDetailId     *int
	Statuses          []IncidentStatus
}

func ListIncidents(ctx context.Context, db *gorm.DB, filter IncidentFilter) ([]Incident, error) {
	dbCtx := db.WithContext(ctx)
	if filter.CashTransactionId != nil {
		dbCtx = dbCtx.Where("cash_transaction_id = ?", *filter.CashTransactionId)
	}
	if filter.ContainerId != nil {
		dbCtx = dbCtx.Where("container_id = ?", *filter.ContainerId)
	}
	if filter.ValueDetailId != nil {
		dbCtx = dbCtx.Where("value_detail_id = ?", *filter.ValueDetailId)
	}
	if len(filter.Statuses) > 0 {
		dbCtx = dbCtx.Where("status IN ?", filter.Statuses)
	}
	var incidents []Incident
	if err := dbCtx.Order("id").Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}
