package dto

type CreateSwapRequest struct {
	ItemID        string  `json:"item_id"`
	OfferedItemID *string `json:"offered_item_id"`
	PointsOffered int64   `json:"points_offered"`
	Message       *string `json:"message"`
}

type SwapActionRequest struct {
	Action string `json:"action"`
}
