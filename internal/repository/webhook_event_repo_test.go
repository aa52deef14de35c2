package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postpilot/internal/models"
	"postpilot/internal/testutil"
)

func TestWebhookEventRecord_Dedup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	repo := NewWebhookEventRepository(db)

	require.NoError(t, repo.Record("evt_1", "payment.captured", `{"event":"payment.captured"}`))

	// The same delivery id again is a duplicate regardless of payload.
	err := repo.Record("evt_1", "payment.captured", `{"event":"payment.captured","n":2}`)
	assert.ErrorIs(t, err, ErrDuplicateEvent)

	// A different id records fine.
	require.NoError(t, repo.Record("evt_2", "subscription.charged", `{}`))

	var count int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
