package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment records one gateway transaction. Rows are immutable once captured:
// Status only moves forward (created -> authorized -> captured / failed /
// refunded) and CapturedAt is set exactly once.
type Payment struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	OrderID          string `gorm:"uniqueIndex;size:64;not null" json:"order_id"` // internal receipt id
	GatewayOrderID   string `gorm:"uniqueIndex;size:64" json:"gateway_order_id"`
	GatewayPaymentID string `gorm:"size:64;index" json:"gateway_payment_id,omitempty"`

	Plan          string  `gorm:"size:20" json:"plan"`
	BillingPeriod string  `gorm:"size:10" json:"billing_period"` // monthly | yearly
	Amount        float64 `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency      string  `gorm:"size:3;not null" json:"currency"`
	Status        string  `gorm:"size:20;not null;default:'created';index" json:"status"`
	Notes         string  `gorm:"type:text" json:"-"` // JSON metadata, e.g. the credit bundle

	CapturedAt *time.Time `json:"captured_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Payment) TableName() string { return "payments" }
