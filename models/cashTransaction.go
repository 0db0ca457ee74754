package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CashTransaction is one collection or provision service event counted at
// the cash center.
type CashTransaction struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	BranchId              int             `gorm:"index;not null" json:"branch_id"`
	ServiceOrderId        string          `gorm:"size:64;index;not null" json:"service_order_id"`
	Currency              string          `gorm:"size:3;not null" json:"currency"`
	Workflow              WorkflowKind    `gorm:"type:enum('Collection','Provision');not null;index" json:"workflow"`
	Status                string          `gorm:"size:32;not null;index" json:"status"`
	DeclaredBillValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"declared_bill_value"`
	DeclaredCoinValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"declared_coin_value"`
	DeclaredDocumentValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"declared_document_value"`
	DeclaredCheckValue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"declared_check_value"`
	DeclaredBillCount     int             `gorm:"not null;default:0" json:"declared_bill_count"`
	DeclaredCoinCount     int             `gorm:"not null;default:0" json:"declared_coin_count"`
	DeclaredDocumentCount int             `gorm:"not null;default:0" json:"declared_document_count"`
	DeclaredCheckCount    int             `gorm:"not null;default:0" json:"declared_check_count"`
	TotalDeclaredValue    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_declared_value"`
	DeclaredBagCount      int             `gorm:"not null;default:0" json:"declared_bag_count"`
	DeclaredEnvelopeCount int             `gorm:"not null;default:0" json:"declared_envelope_count"`
	CountedBillValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"counted_bill_value"`
	CountedCoinValue      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"counted_coin_value"`
	CountedDocumentValue  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"counted_document_value"`
	CountedCheckValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"counted_check_value"`
	TotalCountedValue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_counted_value"`
	ValueDifference       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"value_difference"`
	RegisteredBy          int             `gorm:"index;not null" json:"registered_by"`
	RegisteredByName      string          `gorm:"size:100" json:"registered_by_name"`
	Observations          string          `gorm:"type:text" json:"observations"`
	// Version is bumped on every header write; a write against a stale
	// version fails with ErrConcurrentUpdate.
	Version            int         `gorm:"not null;default:1" json:"version"`
	LastRecalculatedAt *time.Time  `json:"last_recalculated_at"`
	Containers         []Container `gorm:"foreignKey:CashTransactionId" json:"containers"`
	CreatedAt          time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Cash transactions are never physically deleted; cancel them instead.
func (t *CashTransaction) BeforeDelete(tx *gorm.DB) error {
	return errors.New("cash transactions cannot be deleted")
}

type NewCashTransaction struct {
	BranchId              int             `json:"branch_id" validate:"required,gt=0"`
	ServiceOrderId        string          `json:"service_order_id" validate:"max=64"`
	Currency              string          `json:"currency" validate:"omitempty,len=3,alpha"`
	Workflow              WorkflowKind    `json:"workflow" validate:"required,oneof=Collection Provision"`
	DeclaredBillValue     decimal.Decimal `json:"declared_bill_value"`
	DeclaredCoinValue     decimal.Decimal `json:"declared_coin_value"`
	DeclaredDocumentValue decimal.Decimal `json:"declared_document_value"`
	DeclaredCheckValue    decimal.Decimal `json:"declared_check_value"`
	DeclaredBillCount     int             `json:"declared_bill_count" validate:"gte=0"`
	DeclaredCoinCount     int             `json:"declared_coin_count" validate:"gte=0"`
	DeclaredDocumentCount int             `json:"declared_document_count" validate:"gte=0"`
	DeclaredCheckCount    int             `json:"declared_check_count" validate:"gte=0"`
	Observations          string          `json:"observations"`
	RegisteredBy          int             `json:"registered_by"`
	RegisteredByName      string          `json:"registered_by_name" validate:"max=100"`
}

func (input *NewCashTransaction) TotalDeclared() decimal.Decimal {
	return input.DeclaredBillValue.
		Add(input.DeclaredCoinValue).
		Add(input.DeclaredDocumentValue).
		Add(input.DeclaredCheckValue)
}

// CreateCashTransaction inserts the header in status using tx.
func CreateCashTransaction(ctx context.Context, tx *gorm.DB, input *NewCashTransaction, status string) (*CashTransaction, error) {
	cashTransaction := CashTransaction{
		BranchId:              input.BranchId,
		ServiceOrderId:        input.ServiceOrderId,
		Currency:              input.Currency,
		Workflow:              input.Workflow,
		Status:                status,
		DeclaredBillValue:     input.DeclaredBillValue,
		DeclaredCoinValue:     input.DeclaredCoinValue,
		DeclaredDocumentValue: input.DeclaredDocumentValue,
		DeclaredCheckValue:    input.DeclaredCheckValue,
		DeclaredBillCount:     input.DeclaredBillCount,
		DeclaredCoinCount:     input.DeclaredCoinCount,
		DeclaredDocumentCount: input.DeclaredDocumentCount,
		DeclaredCheckCount:    input.DeclaredCheckCount,
		TotalDeclaredValue:    input.TotalDeclared(),
		TotalCountedValue:     decimal.Zero,
		ValueDifference:       input.TotalDeclared().Neg(),
		RegisteredBy:          input.RegisteredBy,
		RegisteredByName:      input.RegisteredByName,
		Observations:          input.Observations,
		Version:               1,
	}
	if err := tx.WithContext(ctx).Create(&cashTransaction).Error; err != nil {
		return nil, err
	}
	return &cashTransaction, nil
}

func GetCashTransaction(ctx context.Context, db *gorm.DB, id int) (*CashTransaction, error) {
	var cashTransaction CashTransaction
	err := db.WithContext(ctx).First(&cashTransaction, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cashTransaction, nil
}

// GetCashTransactionWithGraph eager loads containers and their value details.
func GetCashTransactionWithGraph(ctx context.Context, db *gorm.DB, id int) (*CashTransaction, error) {
	var cashTransaction CashTransaction
	err := db.WithContext(ctx).
		Preload("Containers", func(db *gorm.DB) *gorm.DB {
			return db.Order("containers.id")
		}).
		Preload("Containers.ValueDetails", func(db *gorm.DB) *gorm.DB {
			return db.Order("value_details.id")
		}).
		First(&cashTransaction, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cashTransaction, nil
}

// LockCashTransaction reads the header with SELECT ... FOR UPDATE. tx must be
// a DB transaction.
func LockCashTransaction(ctx context.Context, tx *gorm.DB, id int) (*CashTransaction, error) {
	var cashTransaction CashTransaction
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&cashTransaction, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cashTransaction, nil
}

type CashTransactionFilter struct {
	BranchId *int
	Workflow *WorkflowKind
	Status   *string
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
}

func ListCashTransactions(ctx context.Context, db *gorm.DB, filter CashTransactionFilter) ([]*CashTransaction, error) {
	dbCtx := db.WithContext(ctx)
	if filter.BranchId != nil {
		dbCtx = dbCtx.Where("branch_id = ?", *filter.BranchId)
	}
	if filter.Workflow != nil {
		dbCtx = dbCtx.Where("workflow = ?", *filter.Workflow)
	}
	if filter.Status != nil {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		dbCtx = dbCtx.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		dbCtx = dbCtx.Where("created_at < ?", *filter.ToDate)
	}
	if filter.Limit > 0 {
		dbCtx = dbCtx.Limit(filter.Limit)
	}
	var results []*CashTransaction
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// updateWithVersion writes updates only if the stored version still equals
// t.Version, then bumps it.
func updateWithVersion(ctx context.Context, tx *gorm.DB, t *CashTransaction, updates map[string]interface{}) error {
	updates["version"] = t.Version + 1
	result := tx.WithContext(ctx).Model(&CashTransaction{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	t.Version++
	return nil
}

// UpdateCashTransactionStatus persists a status already validated by the
// workflow's machine.
func UpdateCashTransactionStatus(ctx context.Context, tx *gorm.DB, t *CashTransaction, status string) error {
	if err := updateWithVersion(ctx, tx, t, map[string]interface{}{
		"status": status,
	}); err != nil {
		return err
	}
	t.Status = status
	return nil
}

// CountedTotals is the counted breakdown derived from the container graph.
type CountedTotals struct {
	Bill          decimal.Decimal `json:"bill"`
	Coin          decimal.Decimal `json:"coin"`
	Check         decimal.Decimal `json:"check"`
	Document      decimal.Decimal `json:"document"`
	Total         decimal.Decimal `json:"total"`
	BagCount      int             `json:"bag_count"`
	EnvelopeCount int             `json:"envelope_count"`
}

// ComputeTotals sums calculated amounts over every value detail of every
// container.
func ComputeTotals(containers []Container) CountedTotals {
	totals := CountedTotals{
		Bill:     decimal.Zero,
		Coin:     decimal.Zero,
		Check:    decimal.Zero,
		Document: decimal.Zero,
		Total:    decimal.Zero,
	}
	for _, c := range containers {
		switch c.Type {
		case ContainerTypeBag:
			totals.BagCount++
		case ContainerTypeEnvelope:
			totals.EnvelopeCount++
		}
		for _, d := range c.ValueDetails {
			switch d.ValueType {
			case ValueTypeBill:
				totals.Bill = totals.Bill.Add(d.CalculatedAmount)
			case ValueTypeCoin:
				totals.Coin = totals.Coin.Add(d.CalculatedAmount)
			case ValueTypeCheck:
				totals.Check = totals.Check.Add(d.CalculatedAmount)
			case ValueTypeDocument:
				totals.Document = totals.Document.Add(d.CalculatedAmount)
			}
			totals.Total = totals.Total.Add(d.CalculatedAmount)
		}
	}
	return totals
}

// ApplyTotals copies totals onto the header and keeps
// ValueDifference == TotalCountedValue - TotalDeclaredValue.
func (t *CashTransaction) ApplyTotals(totals CountedTotals) {
	t.CountedBillValue = totals.Bill
	t.CountedCoinValue = totals.Coin
	t.CountedCheckValue = totals.Check
	t.CountedDocumentValue = totals.Document
	t.TotalCountedValue = totals.Total
	t.ValueDifference = totals.Total.Sub(t.TotalDeclaredValue)
	t.DeclaredBagCount = totals.BagCount
	t.DeclaredEnvelopeCount = totals.EnvelopeCount
}

// RecalculateTotals reloads the container graph and rewrites the counted
// totals of the header. Call it after every container save and every
// incident resolution that affects totals.
func RecalculateTotals(ctx context.Context, tx *gorm.DB, id int) (*CashTransaction, error) {
	cashTransaction, err := GetCashTransactionWithGraph(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	cashTransaction.ApplyTotals(ComputeTotals(cashTransaction.Containers))
	now := time.Now().UTC()
	cashTransaction.LastRecalculatedAt = &now

	if err := updateWithVersion(ctx, tx, cashTransaction, map[string]interface{}{
		"counted_bill_value":      cashTransaction.CountedBillValue,
		"counted_coin_value":      cashTransaction.CountedCoinValue,
		"counted_check_value":     cashTransaction.CountedCheckValue,
		"counted_document_value":  cashTransaction.CountedDocumentValue,
		"total_counted_value":     cashTransaction.TotalCountedValue,
		"value_difference":        cashTransaction.ValueDifference,
		"declared_bag_count":      cashTransaction.DeclaredBagCount,
		"declared_envelope_count": cashTransaction.DeclaredEnvelopeCount,
		"last_recalculated_at":    now,
	}); err != nil {
		return nil, err
	}
	return cashTransaction, nil
}
