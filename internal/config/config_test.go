package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, HistoryLedger, cfg.HistorySource)
	assert.Equal(t, "members.events", cfg.MembersExchange)
	assert.Equal(t, 2*time.Second, cfg.OutboxInterval)
	assert.Equal(t, 32, cfg.OutboxBatch)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	assert.Equal(t, []string{"Pay in Full Membership", "Sponsor Membership"}, cfg.FullLabels)
	assert.Equal(t, []string{"Quarterly Membership", "Payment Plan Membership"}, cfg.InstallmentLabels)
	assert.Empty(t, cfg.SquareSignatureKey)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEMBERS_HTTP_ADDR", ":9090")
	t.Setenv("MEMBERS_STORE", StoreMemory)
	t.Setenv("MEMBERS_OUTBOX_INTERVAL", "500ms")
	t.Setenv("MEMBERS_OUTBOX_BATCH", "not-a-number")
	t.Setenv("MEMBERS_HISTORY_SOURCE", HistorySquare)
	t.Setenv("SQUARE_TIMEOUT", "3s")
	t.Setenv("MEMBERS_FULL_LABELS", " Lifetime Owner , ,Founding Member")
	t.Setenv("MEMBERS_INSTALLMENT_LABELS", " , ")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxInterval)
	assert.Equal(t, 32, cfg.OutboxBatch)
	assert.Equal(t, HistorySquare, cfg.HistorySource)
	assert.Equal(t, 3*time.Second, cfg.SquareTimeout)
	assert.Equal(t, []string{"Lifetime Owner", "Founding Member"}, cfg.FullLabels)
	assert.Equal(t, []string{"Quarterly Membership", "Payment Plan Membership"}, cfg.InstallmentLabels)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Config{}.Validate())
	require.NoError(t, Config{SquareSignatureKey: "key", SquareNotificationURL: "https://example.org/webhooks/square"}.Validate())
	assert.ErrorIs(t, Config{SquareSignatureKey: "key"}.Validate(), ErrNotificationURLRequired)
}
