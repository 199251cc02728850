// Package credential derives admission verifiers for order line items.
//
// A verifier is deterministic for a given (order, item, purchaser) tuple,
// so retries and offline recomputation always agree, and practically
// unguessable for anyone without the tuple.
package credential

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix namespaces every verifier so scanners can reject foreign codes
// cheaply.
const Prefix = "evlync:"

const digestLen = 12

// Issue returns the verifier string for a line item.
// Format: evlync:<first 12 hex chars of sha1(order:item:user)>.
func Issue(orderID, itemID, userID uuid.UUID) string {
	base := fmt.Sprintf("%s:%s:%s", orderID, itemID, userID)
	sum := sha1.Sum([]byte(base))
	return Prefix + hex.EncodeToString(sum[:])[:digestLen]
}

// Payload is the richer QR payload variant. Everything except Code is
// advisory display metadata and must not be trusted for authorization.
type Payload struct {
	Type        string      `json:"type"`
	Code        string      `json:"code"`
	OrderID     uuid.UUID   `json:"order_id"`
	OrderItemID uuid.UUID   `json:"order_item_id"`
	UserID      uuid.UUID   `json:"user_id"`
	Event       EventInfo   `json:"event"`
	TicketType  TicketInfo  `json:"ticket_type"`
	IssuedAt    time.Time   `json:"issued_at"`
	Version     int         `json:"version"`
}

type EventInfo struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title,omitempty"`
	StartsAt string    `json:"starts_at,omitempty"`
}

type TicketInfo struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

// IssuePayload returns the JSON payload for client-side QR rendering,
// embedding the same verifier Issue would produce.
func IssuePayload(
	orderID, itemID, userID uuid.UUID,
	event EventInfo,
	ticketType TicketInfo,
	now time.Time,
) (string, error) {
	p := Payload{
		Type:        "ticket",
		Code:        Issue(orderID, itemID, userID),
		OrderID:     orderID,
		OrderItemID: itemID,
		UserID:      userID,
		Event:       event,
		TicketType:  ticketType,
		IssuedAt:    now.UTC(),
		Version:     1,
	}

	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ExtractVerifier returns the verifier embedded in a presented code.
// A bare verifier is returned as-is; a structured payload gets exactly
// one JSON decode attempt to pull out its "code" field. No other
// decodings are tried.
func ExtractVerifier(presented string) (string, bool) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return "", false
	}

	if strings.HasPrefix(presented, Prefix) {
		return presented, true
	}

	if strings.HasPrefix(presented, "{") {
		var p struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal([]byte(presented), &p); err == nil &&
			strings.HasPrefix(p.Code, Prefix) {
			return p.Code, true
		}
	}

	return "", false
}
