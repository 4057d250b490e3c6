package models

import "time"

type TransactionType string

const (
	TransactionEarned          TransactionType = "earned"
	TransactionSpent           TransactionType = "spent"
	TransactionAdminAdjustment TransactionType = "admin_adjustment"
)

// PointsTransaction is one append-only entry in a user's points ledger.
type PointsTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Amount        int64           `json:"amount"`
	Type          TransactionType `json:"type"`
	Description   *string         `json:"description"`
	RelatedSwapID *string         `json:"related_swap_id"`
	CreatedAt     time.Time       `json:"created_at"`
}
