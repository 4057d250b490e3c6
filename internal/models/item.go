package models

import "time"

type ItemCondition string

const (
	ConditionNew     ItemCondition = "new"
	ConditionLikeNew ItemCondition = "like_new"
	ConditionGood    ItemCondition = "good"
	ConditionFair    ItemCondition = "fair"
	ConditionPoor    ItemCondition = "poor"
)

// Valid reports whether c is a known condition grade.
func (c ItemCondition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemApproved ItemStatus = "approved"
	ItemRejected ItemStatus = "rejected"
	ItemSwapped  ItemStatus = "swapped"
)

// Moderatable reports whether an admin may set an item to s.
func (s ItemStatus) Moderatable() bool {
	return s == ItemPending || s == ItemApproved || s == ItemRejected
}

// Item is a listed garment.
type Item struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Category    string        `json:"category"`
	Type        string        `json:"type"`
	Size        string        `json:"size"`
	Condition   ItemCondition `json:"condition"`
	Tags        []string      `json:"tags"`
	Images      []string      `json:"images"`
	PointsValue int64         `json:"points_value"`
	Status      ItemStatus    `json:"status"`
	IsAvailable bool          `json:"is_available"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	User *UserSummary `json:"user,omitempty"`
}

// Listed reports whether the item is visible in browse results and can be swapped for.
func (i Item) Listed() bool {
	return i.Status == ItemApproved && i.IsAvailable
}

// VisibleTo reports whether viewer may see the item's detail page.
// A nil viewer is an anonymous visitor.
func (i Item) VisibleTo(viewer *User) bool {
	if i.Status == ItemApproved {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.ID == i.UserID || viewer.IsAdmin()
}

// ItemSummary is the joined item view embedded in swap listings.
type ItemSummary struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Images []string `json:"images"`
}
