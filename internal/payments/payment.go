package payments

import "time"

// Payment is a single recorded transaction. ID is the provider-assigned
// session/event identifier and doubles as the idempotency key: storing the
// same ID twice replaces the row instead of duplicating it.
type Payment struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"` // minor currency units
	Email       string    `json:"email,omitempty"`
	Creator     string    `json:"creator"` // empty means undirected/business payment
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	GiftName    string    `json:"gift_name,omitempty"`
	GiftMessage string    `json:"gift_message,omitempty"`
	Anonymous   bool      `json:"anonymous"`
}

// Entry is a payment joined with the creator's display name for dashboards.
// ProfileName is empty when the payment is undirected or the creator row is
// missing; an orphaned creator reference is valid, not an error.
type Entry struct {
	Payment
	ProfileName string `json:"profile_name,omitempty"`
}
