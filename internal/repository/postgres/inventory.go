package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evlync/evlync/internal/repository"
)

type InventoryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *InventoryRepo) With(db DB) *InventoryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InventoryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Reserve decrements availability for a ticket type by atomically bumping
// quantity_sold, but only when enough quantity remains. The update itself
// is the authoritative check: concurrent reservations serialize on the
// ticket-type row, so committed reservations can never exceed
// quantity_total.
//
// Returns:
//   - error: repository.ErrInsufficientInventory when fewer than quantity
//     units remain.
//   - error: repository.ErrNotFound when the ticket type does not exist.
func (r *InventoryRepo) Reserve(
	ctx context.Context,
	ticketTypeID uuid.UUID,
	quantity int,
) error {
	const op = "postgres.InventoryRepo.Reserve"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_types
         SET quantity_sold = quantity_sold + $2, updated_at = now()
      	 WHERE id = $1
        	AND quantity_sold + $2 <= quantity_total`,
		ticketTypeID, quantity,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the row does not exist or not enough remains.
	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ticket_types WHERE id = $1)`,
		ticketTypeID,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrInsufficientInventory)
}

// ReleaseItem reverses the reservation held by one order item. The
// released flag on the item makes the operation idempotent: a second
// release of the same item is a no-op and never double-credits inventory.
//
// Returns:
//   - error: repository.ErrAlreadyReleased when the item was released before.
//   - error: repository.ErrNotFound when the item does not exist.
func (r *InventoryRepo) ReleaseItem(
	ctx context.Context,
	itemID uuid.UUID,
) error {
	const op = "postgres.InventoryRepo.ReleaseItem"

	db := r.handle()

	var ticketTypeID uuid.UUID
	var quantity int
	err := db.QueryRow(ctx,
		`UPDATE order_items
         SET released = TRUE
      	 WHERE id = $1 AND released = FALSE
      	 RETURNING ticket_type_id, quantity`,
		itemID,
	).Scan(&ticketTypeID, &quantity)
	if err != nil {
		if translateDBErr(err) == repository.ErrNotFound {
			var exists bool
			if err2 := db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM order_items WHERE id = $1)`,
				itemID,
			).Scan(&exists); err2 != nil {
				return wrapDBErr(op, err2)
			}
			if exists {
				return fmt.Errorf("%s:%w", op, repository.ErrAlreadyReleased)
			}
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return wrapDBErr(op, err)
	}

	tag, err := db.Exec(ctx,
		`UPDATE ticket_types
         SET quantity_sold = quantity_sold - $2, updated_at = now()
      	 WHERE id = $1 AND quantity_sold - $2 >= 0`,
		ticketTypeID, quantity,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	return nil
}

// AdjustCapacity changes quantity_total administratively. The condition
// keeps the new capacity at or above the current sold count.
func (r *InventoryRepo) AdjustCapacity(
	ctx context.Context,
	ticketTypeID uuid.UUID,
	newTotal int,
) error {
	const op = "postgres.InventoryRepo.AdjustCapacity"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_types
         SET quantity_total = $2, updated_at = now()
      	 WHERE id = $1 AND quantity_sold <= $2`,
		ticketTypeID, newTotal,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ticket_types WHERE id = $1)`,
		ticketTypeID,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrCapacityBelowSold)
}
