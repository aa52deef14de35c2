package models

import "time"

// WebhookEvent is the idempotency ledger for gateway deliveries. The unique
// EventID index makes re-delivered events no-ops: the second insert fails,
// the delivery is acknowledged and skipped.
type WebhookEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"uniqueIndex;size:64;not null" json:"event_id"`
	Event       string    `gorm:"size:64;not null;index" json:"event"`
	Payload     string    `gorm:"type:text" json:"-"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
