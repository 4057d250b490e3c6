package dto

type ItemStatusNotificationRequest struct {
	UserID    string `json:"userId"`
	ItemID    string `json:"itemId"`
	Status    string `json:"status"`
	ItemTitle string `json:"itemTitle"`
}

type NotificationResult struct {
	Sent bool `json:"sent"`
}
