package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ServiceOrder is the minimal local record of the external service order.
// Only the progress code is read or written here.
type ServiceOrder struct {
	ID        string          `gorm:"primaryKey;size:64" json:"id"`
	BranchId  int             `gorm:"index;not null;default:0" json:"branch_id"`
	Progress  ServiceProgress `gorm:"not null;default:0" json:"progress"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type serviceProgressPayload struct {
	ServiceOrderId string          `json:"service_order_id"`
	From           ServiceProgress `json:"from"`
	To             ServiceProgress `json:"to"`
}

// ServiceOrderRepo reads and writes service-order progress on DB. Pass the
// caller's transaction so the write commits with the status change.
type ServiceOrderRepo struct {
	DB *gorm.DB
}

func NewServiceOrderRepo(db *gorm.DB) *ServiceOrderRepo {
	return &ServiceOrderRepo{DB: db}
}

// GetServiceProgress returns found=false when the order does not exist.
func (r *ServiceOrderRepo) GetServiceProgress(ctx context.Context, serviceOrderId string) (ServiceProgress, bool, error) {
	var order ServiceOrder
	err := r.DB.WithContext(ctx).Where("id = ?", serviceOrderId).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return order.Progress, true, nil
}

func (r *ServiceOrderRepo) SetServiceProgress(ctx context.Context, serviceOrderId string, progress ServiceProgress) error {
	var order ServiceOrder
	if err := r.DB.WithContext(ctx).Where("id = ?", serviceOrderId).First(&order).Error; err != nil {
		return err
	}
	from := order.Progress
	if err := r.DB.WithContext(ctx).Model(&order).Update("progress", progress).Error; err != nil {
		return err
	}
	return EnqueueOutboxEvent(ctx, r.DB, order.BranchId, EventServiceProgressChanged, ReferenceTypeServiceOrder, 0, serviceOrderId,
		serviceProgressPayload{ServiceOrderId: serviceOrderId, From: from, To: progress})
}
