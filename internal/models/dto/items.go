package dto

import "github.com/hongminglow/rewear-be/internal/models"

type CreateItemRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	Type        string               `json:"type"`
	Size        string               `json:"size"`
	Condition   models.ItemCondition `json:"condition"`
	Tags        []string             `json:"tags"`
	Images      []string             `json:"images"`
	PointsValue *int64               `json:"points_value"`
}

type UploadImageResponse struct {
	URL string `json:"url"`
}

type Dashboard struct {
	User         models.User                `json:"user"`
	Items        []models.Item              `json:"items"`
	Swaps        []models.Swap              `json:"swaps"`
	Transactions []models.PointsTransaction `json:"transactions"`
}
