package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Caller is the authenticated identity attached to every core operation.
// It replaces loose claim maps with a typed value.
type Caller struct {
	ID    uuid.UUID
	Role  Role
	Email string
}

func (c Caller) IsAdmin() bool     { return c.Role == RoleAdmin }
func (c Caller) IsOrganizer() bool { return c.Role == RoleOrganizer }

// CanManageEvent reports whether the caller may administer the event
// owned by organizerID.
func (c Caller) CanManageEvent(organizerID uuid.UUID) bool {
	return c.Role == RoleAdmin || (c.Role == RoleOrganizer && c.ID == organizerID)
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
)

// Terminal reports whether no further transition out of s is permitted.
func (s OrderStatus) Terminal() bool {
	return s != OrderPending
}

// CanTransition reports whether s -> to is a legal order transition.
// Only a pending order moves anywhere; paid, cancelled, completed and
// failed are terminal.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s != OrderPending {
		return false
	}
	switch to {
	case OrderPaid, OrderCancelled, OrderFailed:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s != PaymentPending
}

type PaymentProvider string

const (
	ProviderFree  PaymentProvider = "free"
	ProviderMpesa PaymentProvider = "mpesa"
)

type Event struct {
	ID          uuid.UUID `json:"id"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	VenueName   string    `json:"venue_name,omitempty"`
	IsPublished bool      `json:"is_published"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TicketType struct {
	ID            uuid.UUID `json:"id"`
	EventID       uuid.UUID `json:"event_id"`
	Name          string    `json:"name"`
	PriceCents    int64     `json:"price_cents"`
	QuantityTotal int       `json:"quantity_total"`
	QuantitySold  int       `json:"quantity_sold"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// QuantityAvailable is derived from the stored counters, never stored
// independently.
func (t TicketType) QuantityAvailable() int {
	if n := t.QuantityTotal - t.QuantitySold; n > 0 {
		return n
	}
	return 0
}

type Order struct {
	ID         uuid.UUID   `json:"id"`
	UserID     uuid.UUID   `json:"user_id"`
	EventID    uuid.UUID   `json:"event_id"`
	TotalCents int64       `json:"total_cents"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID           uuid.UUID `json:"id"`
	OrderID      uuid.UUID `json:"order_id"`
	TicketTypeID uuid.UUID `json:"ticket_type_id"`
	Quantity     int       `json:"quantity"`
	// UnitPriceCents is snapshotted at purchase time and does not follow
	// later ticket-type price edits.
	UnitPriceCents int64      `json:"unit_price_cents"`
	Verifier       string     `json:"verifier,omitempty"`
	Released       bool       `json:"-"`
	CheckedIn      bool       `json:"checked_in"`
	CheckedInAt    *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy    *uuid.UUID `json:"checked_in_by,omitempty"`
}

type Payment struct {
	ID                uuid.UUID       `json:"id"`
	OrderID           uuid.UUID       `json:"order_id"`
	AmountCents       int64           `json:"amount_cents"`
	Provider          PaymentProvider `json:"provider"`
	Status            PaymentStatus   `json:"status"`
	ProviderReference *string         `json:"provider_reference,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type OrderWithItems struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

type TicketTypeAvailability struct {
	TicketType
	QuantityAvailable int `json:"quantity_available"`
}
