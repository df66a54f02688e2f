package dto

import "encoding/json"

type CreateOrderRequest struct {
	CourseID string `json:"course_id" binding:"required"`
	// PaymentInfo is the gateway receipt, stored as the client sent it.
	PaymentInfo json.RawMessage `json:"payment_info"`
}
