package repository

import (
	"errors"
	"strings"
	"time"

	"postpilot/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicateEvent means this delivery was already recorded; the caller
// acknowledges it without reprocessing.
var ErrDuplicateEvent = errors.New("webhook event already processed")

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Record inserts the delivery into the idempotency ledger. The unique index
// on event_id turns a duplicate delivery into ErrDuplicateEvent.
func (r *WebhookEventRepository) Record(eventID, event, payload string) error {
	err := r.db.Create(&models.WebhookEvent{
		EventID:     eventID,
		Event:       event,
		Payload:     payload,
		ProcessedAt: time.Now(),
	}).Error
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateEvent
	}
	return err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// MySQL 1062 / SQLite unique violation, for drivers that don't
	// translate to gorm.ErrDuplicatedKey.
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
