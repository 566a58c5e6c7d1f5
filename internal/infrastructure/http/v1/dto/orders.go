package dto

import (
	"time"

	"shopfloor/internal/core/types"
	"shopfloor/internal/domain/orders"
)

// CreateOrderRequest creates a production order.
type CreateOrderRequest struct {
	Number      string         `json:"number,omitempty"`
	ProductID   string         `json:"productId" binding:"required"`
	ProductName string         `json:"productName" binding:"required"`
	Quantity    types.Quantity `json:"quantity"`
	Deadline    *time.Time     `json:"deadline,omitempty"`
	Status      orders.Status  `json:"status,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateOrderRequest) ToEntity() (*orders.Order, error) {
	productID, err := parseID("productId", r.ProductID)
	if err != nil {
		return nil, err
	}
	o := orders.NewOrder(productID, r.ProductName, r.Quantity)
	o.Number = r.Number
	o.Deadline = r.Deadline
	if r.Status != "" {
		o.Status = r.Status
	}
	return o, nil
}

// OrderResponse is the API view of an order.
type OrderResponse struct {
	ID          string         `json:"id"`
	Number      string         `json:"number"`
	ProductID   string         `json:"productId"`
	ProductName string         `json:"productName"`
	Quantity    types.Quantity `json:"quantity"`
	Deadline    *time.Time     `json:"deadline,omitempty"`
	Status      orders.Status  `json:"status"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// FromOrder creates OrderResponse from orders.Order.
func FromOrder(o *orders.Order) OrderResponse {
	return OrderResponse{
		ID:          o.ID.String(),
		Number:      o.Number,
		ProductID:   o.ProductID.String(),
		ProductName: o.ProductName,
		Quantity:    o.Quantity,
		Deadline:    o.Deadline,
		Status:      o.Status,
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}
