package models

import "time"

type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapRejected  SwapStatus = "rejected"
	SwapCompleted SwapStatus = "completed"
)

// Swap is a proposed or completed exchange between two users' items and/or points.
type Swap struct {
	ID            string     `json:"id"`
	RequesterID   string     `json:"requester_id"`
	OwnerID       string     `json:"owner_id"`
	ItemID        string     `json:"item_id"`
	OfferedItemID *string    `json:"offered_item_id"`
	PointsOffered int64      `json:"points_offered"`
	Status        SwapStatus `json:"status"`
	Message       *string    `json:"message"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Item        *ItemSummary `json:"item,omitempty"`
	OfferedItem *ItemSummary `json:"offered_item,omitempty"`
	Requester   *UserSummary `json:"requester,omitempty"`
	Owner       *UserSummary `json:"owner,omitempty"`
}

// Involves reports whether userID is one of the two parties.
func (s Swap) Involves(userID string) bool {
	return s.RequesterID == userID || s.OwnerID == userID
}

// IsRedemption reports whether the swap pays for the item with points only.
func (s Swap) IsRedemption() bool {
	return s.OfferedItemID == nil
}
