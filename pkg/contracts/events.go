package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

const MemberCountUpdated = "members.count_updated"

// MemberCountUpdatedEvent is written to member_outbox by
// increment_member_count and fanned out to every instance.
type MemberCountUpdatedEvent struct {
	EventID   string          `json:"event_id"`
	Increment decimal.Decimal `json:"increment"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}
