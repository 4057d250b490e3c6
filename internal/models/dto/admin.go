package dto

type ItemStatusRequest struct {
	ItemID string `json:"itemId"`
	Status string `json:"status"`
}

type UserRoleRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type PointsAdjustmentRequest struct {
	UserID      string `json:"userId"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}
