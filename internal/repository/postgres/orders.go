package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evlync/evlync/internal/domain"
	"github.com/evlync/evlync/internal/repository"
)

type OrderRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *OrderRepo) With(db DB) *OrderRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *OrderRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *OrderRepo) Create(
	ctx context.Context,
	userID, eventID uuid.UUID,
	status domain.OrderStatus,
) (uuid.UUID, error) {
	const op = "postgres.OrderRepo.Create"

	db := r.handle()

	id := uuid.New()
	if _, err := db.Exec(ctx,
		`INSERT INTO orders(id, user_id, event_id, total_cents, status)
       	 VALUES ($1, $2, $3, 0, $4)`,
		id, userID, eventID, status,
	); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *OrderRepo) CreateItem(
	ctx context.Context,
	orderID, ticketTypeID uuid.UUID,
	quantity int,
	unitPriceCents int64,
	verifier string,
) (uuid.UUID, error) {
	const op = "postgres.OrderRepo.CreateItem"

	db := r.handle()

	id := uuid.New()
	if _, err := db.Exec(ctx,
		`INSERT INTO order_items(id, order_id, ticket_type_id, quantity, unit_price_cents, verifier)
       	 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
		id, orderID, ticketTypeID, quantity, unitPriceCents, verifier,
	); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *OrderRepo) SetTotal(
	ctx context.Context,
	orderID uuid.UUID,
	totalCents int64,
) error {
	const op = "postgres.OrderRepo.SetTotal"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE orders SET total_cents = $2, updated_at = now() WHERE id = $1`,
		orderID, totalCents,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// TransitionStatus moves an order out of pending. The WHERE clause is the
// guard: a terminal order never transitions again, and whichever of two
// concurrent writers commits first wins.
//
// Returns:
//   - error: repository.ErrStatusTerminal when the order is no longer pending.
//   - error: repository.ErrNotFound when the order does not exist.
func (r *OrderRepo) TransitionStatus(
	ctx context.Context,
	orderID uuid.UUID,
	to domain.OrderStatus,
) error {
	const op = "postgres.OrderRepo.TransitionStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE orders
         SET status = $2, updated_at = now()
      	 WHERE id = $1 AND status = 'pending'`,
		orderID, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`,
		orderID,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrStatusTerminal)
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.Get"

	db := r.handle()

	var o domain.Order
	err := db.QueryRow(ctx,
		`SELECT id, user_id, event_id, total_cents, status, created_at, updated_at
       	 FROM orders WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.UserID, &o.EventID, &o.TotalCents, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &o, nil
}

// GetForUpdate locks the order row for the rest of the transaction so a
// payment callback and a user cancellation of the same order serialize.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "postgres.OrderRepo.GetForUpdate"

	db := r.handle()

	var o domain.Order
	err := db.QueryRow(ctx,
		`SELECT id, user_id, event_id, total_cents, status, created_at, updated_at
       	 FROM orders WHERE id = $1
       	 FOR UPDATE`,
		id,
	).Scan(&o.ID, &o.UserID, &o.EventID, &o.TotalCents, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &o, nil
}

func (r *OrderRepo) ListItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	const op = "postgres.OrderRepo.ListItems"

	db := r.handle()

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

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.TicketTypeID, &it.Quantity, &it.UnitPriceCents,
			&it.Verifier, &it.Released, &it.CheckedIn, &it.CheckedInAt, &it.CheckedInBy,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return items, nil
}

func (r *OrderRepo) SetItemVerifier(
	ctx context.Context,
	itemID uuid.UUID,
	verifier string,
) error {
	const op = "postgres.OrderRepo.SetItemVerifier"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE order_items SET verifier = $2 WHERE id = $1 AND verifier IS NULL`,
		itemID, verifier,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	return nil
}

// FindItemByVerifier matches a presented verifier against the items of
// the given event. Exact match only; payload fallback is the caller's job.
func (r *OrderRepo) FindItemByVerifier(
	ctx context.Context,
	eventID uuid.UUID,
	verifier string,
) (*domain.OrderItem, error) {
	const op = "postgres.OrderRepo.FindItemByVerifier"

	db := r.handle()

	var it domain.OrderItem
	err := db.QueryRow(ctx,
		`SELECT oi.id, oi.order_id, oi.ticket_type_id, oi.quantity, oi.unit_price_cents,
                COALESCE(oi.verifier, ''), oi.released, oi.checked_in, oi.checked_in_at, oi.checked_in_by
       	 FROM order_items oi
       	 JOIN orders o ON o.id = oi.order_id
      	 WHERE o.event_id = $1 AND oi.verifier = $2`,
		eventID, verifier,
	).Scan(
		&it.ID, &it.OrderID, &it.TicketTypeID, &it.Quantity, &it.UnitPriceCents,
		&it.Verifier, &it.Released, &it.CheckedIn, &it.CheckedInAt, &it.CheckedInBy,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &it, nil
}

// MarkCheckedIn performs the at-most-once admission write. The
// checked_in = FALSE guard makes a second commit report "already used"
// instead of silently overwriting the first admission's metadata.
func (r *OrderRepo) MarkCheckedIn(
	ctx context.Context,
	itemID uuid.UUID,
	staffID uuid.UUID,
	at time.Time,
) error {
	const op = "postgres.OrderRepo.MarkCheckedIn"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE order_items
         SET checked_in = TRUE, checked_in_at = $2, checked_in_by = $3
      	 WHERE id = $1 AND checked_in = FALSE`,
		itemID, at, staffID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_items WHERE id = $1)`,
		itemID,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrAlreadyCheckedIn)
}
