package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evlync/evlync/internal/domain"
)

type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetEvent retrieves an event by its ID.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: repository.ErrNotFound if the event is not found.
func (r *QueryRepo) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgres.QueryRepo.GetEvent"

	db := r.handle()

	e, err := scanEvent(db.QueryRow(ctx,
		`SELECT id, organizer_id, title, COALESCE(description, ''), COALESCE(venue_name, ''),
                is_published, starts_at, ends_at, created_at, updated_at
       	 FROM events WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return e, nil
}

// GetTicketType retrieves a ticket type by its ID.
func (r *QueryRepo) GetTicketType(ctx context.Context, id uuid.UUID) (*domain.TicketType, error) {
	const op = "postgres.QueryRepo.GetTicketType"

	db := r.handle()

	var t domain.TicketType
	err := db.QueryRow(ctx,
		`SELECT id, event_id, name, price_cents, quantity_total, quantity_sold, created_at, updated_at
       	 FROM ticket_types WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.EventID, &t.Name, &t.PriceCents,
		&t.QuantityTotal, &t.QuantitySold, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &t, nil
}

// ListTicketTypes retrieves all ticket types of an event, id-ordered.
func (r *QueryRepo) ListTicketTypes(
	ctx context.Context,
	eventID uuid.UUID,
) ([]domain.TicketType, error) {
	const op = "postgres.QueryRepo.ListTicketTypes"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, event_id, name, price_cents, quantity_total, quantity_sold, created_at, updated_at
       	 FROM ticket_types
      	 WHERE event_id = $1
      	 ORDER BY id`,
		eventID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	return collectTicketTypes(op, rows)
}

// GetOrderWithItems retrieves an order and its line items in one shot.
func (r *QueryRepo) GetOrderWithItems(
	ctx context.Context,
	orderID uuid.UUID,
) (*domain.OrderWithItems, error) {
	const op = "postgres.QueryRepo.GetOrderWithItems"

	db := r.handle()

	var out domain.OrderWithItems
	err := db.QueryRow(ctx,
		`SELECT id, user_id, event_id, total_cents, status, created_at, updated_at
       	 FROM orders WHERE id = $1`,
		orderID,
	).Scan(&out.Order.ID, &out.Order.UserID, &out.Order.EventID,
		&out.Order.TotalCents, &out.Order.Status, &out.Order.CreatedAt, &out.Order.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rows, err := db.Query(ctx,
		`SELECT id, order_id, ticket_type_id, quantity, unit_price_cents,
                COALESCE(verifier, ''), released, checked_in, checked_in_at, checked_in_by
       	 FROM order_items
      	 WHERE order_id = $1
      	 ORDER BY ticket_type_id`,
		orderID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.TicketTypeID, &it.Quantity, &it.UnitPriceCents,
			&it.Verifier, &it.Released, &it.CheckedIn, &it.CheckedInAt, &it.CheckedInBy,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out.Items = append(out.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &out, nil
}

// ListOrdersByUser retrieves a purchaser's orders, newest first.
func (r *QueryRepo) ListOrdersByUser(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]domain.Order, error) {
	const op = "postgres.QueryRepo.ListOrdersByUser"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, user_id, event_id, total_cents, status, created_at, updated_at
       	 FROM orders
      	 WHERE user_id = $1
      	 ORDER BY created_at DESC
      	 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	return collectOrders(op, rows)
}

// ListOrdersByEvent retrieves an event's orders, newest first.
func (r *QueryRepo) ListOrdersByEvent(
	ctx context.Context,
	eventID uuid.UUID,
	limit, offset int,
) ([]domain.Order, error) {
	const op = "postgres.QueryRepo.ListOrdersByEvent"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, user_id, event_id, total_cents, status, created_at, updated_at
       	 FROM orders
      	 WHERE event_id = $1
      	 ORDER BY created_at DESC
      	 LIMIT $2 OFFSET $3`,
		eventID, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	return collectOrders(op, rows)
}

func collectOrders(op string, rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.EventID, &o.TotalCents, &o.Status, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return orders, nil
}

func collectTicketTypes(op string, rows pgx.Rows) ([]domain.TicketType, error) {
	var tts []domain.TicketType
	for rows.Next() {
		var t domain.TicketType
		if err := rows.Scan(
			&t.ID, &t.EventID, &t.Name, &t.PriceCents,
			&t.QuantityTotal, &t.QuantitySold, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		tts = append(tts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return tts, nil
}
