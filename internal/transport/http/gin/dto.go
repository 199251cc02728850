package httpgin

import (
	"time"

	"github.com/google/uuid"

	"github.com/evlync/evlync/internal/service/checkin"
	"github.com/evlync/evlync/internal/service/orders"
)

type OrderLineInput struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required,uuid"`
	Quantity     int    `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	EventID string           `json:"event_id" binding:"required,uuid"`
	Lines   []OrderLineInput `json:"lines" binding:"required,min=1,dive"`
}

type InitiatePaymentRequest struct {
	EventID string           `json:"event_id" binding:"required,uuid"`
	Phone   string           `json:"phone" binding:"required"`
	Lines   []OrderLineInput `json:"lines" binding:"required,min=1,dive"`
}

type CheckInRequest struct {
	EventID string `json:"event_id" binding:"required,uuid"`
	Code    string `json:"code" binding:"required"`
}

type CreateEventRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	VenueName   string `json:"venue_name"`
	IsPublished bool   `json:"is_published"`
	StartsAt    string `json:"starts_at" binding:"required"`
	EndsAt      string `json:"ends_at" binding:"required"`
}

type CreateTicketTypeRequest struct {
	Name          string `json:"name" binding:"required"`
	PriceCents    int64  `json:"price_cents" binding:"gte=0"`
	QuantityTotal int    `json:"quantity_total" binding:"gte=0"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type InitiatePaymentResponse struct {
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id"`
	TotalCents int64  `json:"total_cents"`
	Status     string `json:"status"`
}

type PaymentStatusResponse struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
}

type CheckInResponse struct {
	OrderItemID string     `json:"order_item_id"`
	OrderID     string     `json:"order_id"`
	TicketType  string     `json:"ticket_type"`
	Quantity    int        `json:"quantity"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseLines(in []OrderLineInput) ([]orders.Line, bool) {
	lines := make([]orders.Line, 0, len(in))
	for _, l := range in {
		id, err := uuid.Parse(l.TicketTypeID)
		if err != nil {
			return nil, false
		}
		lines = append(lines, orders.Line{TicketTypeID: id, Quantity: l.Quantity})
	}
	return lines, true
}

func checkInResponse(res *checkin.Result) CheckInResponse {
	return CheckInResponse{
		OrderItemID: res.Item.ID.String(),
		OrderID:     res.Order.ID.String(),
		TicketType:  res.TicketType.Name,
		Quantity:    res.Item.Quantity,
		CheckedIn:   res.Item.CheckedIn,
		CheckedInAt: res.Item.CheckedInAt,
	}
}
