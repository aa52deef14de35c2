package repository

import (
	"time"

	"postpilot/internal/domain"
	"postpilot/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByOrderID(orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByGatewayOrderID(gwOrderID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("gateway_order_id = ?", gwOrderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// AdvanceStatus moves a payment to a later status. The guard clause keeps
// transitions forward-only: a late "authorized" cannot regress a captured
// payment, and captured_at is written at most once.
func (r *PaymentRepository) AdvanceStatus(p *models.Payment, status, gatewayPaymentID string) error {
	if domain.PaymentStatusRank(status) <= domain.PaymentStatusRank(p.Status) {
		return nil
	}
	updates := map[string]interface{}{"status": status}
	if gatewayPaymentID != "" {
		updates["gateway_payment_id"] = gatewayPaymentID
	}
	if status == domain.PaymentCaptured && p.CapturedAt == nil {
		updates["captured_at"] = time.Now()
	}
	return r.db.Model(p).Updates(updates).Error
}

func (r *PaymentRepository) ListByUserID(userID uint, limit, offset int) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
