package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evlync/evlync/internal/domain"
	"github.com/evlync/evlync/internal/repository"
)

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) (uuid.UUID, error) {
	const op = "postgres.EventRepo.Create"

	db := r.handle()

	id := uuid.New()
	if _, err := db.Exec(ctx,
		`INSERT INTO events(id, organizer_id, title, description, venue_name, is_published, starts_at, ends_at)
       	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, e.OrganizerID, e.Title, e.Description, e.VenueName, e.IsPublished, e.StartsAt, e.EndsAt,
	); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *EventRepo) Update(ctx context.Context, e *domain.Event) error {
	const op = "postgres.EventRepo.Update"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE events
         SET title = $2, description = $3, venue_name = $4, is_published = $5,
             starts_at = $6, ends_at = $7, updated_at = now()
      	 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.VenueName, e.IsPublished, e.StartsAt, e.EndsAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// Delete removes an event; ticket types, orders, items and payments go
// with it via ON DELETE CASCADE.
func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.EventRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *EventRepo) CreateTicketType(
	ctx context.Context,
	eventID uuid.UUID,
	name string,
	priceCents int64,
	quantityTotal int,
) (uuid.UUID, error) {
	const op = "postgres.EventRepo.CreateTicketType"

	db := r.handle()

	id := uuid.New()
	if _, err := db.Exec(ctx,
		`INSERT INTO ticket_types(id, event_id, name, price_cents, quantity_total, quantity_sold)
       	 VALUES ($1, $2, $3, $4, $5, 0)`,
		id, eventID, name, priceCents, quantityTotal,
	); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

// UpdateTicketType edits name and price. Capacity changes go through
// InventoryRepo.AdjustCapacity so the sold-count guard stays in one place.
func (r *EventRepo) UpdateTicketType(
	ctx context.Context,
	ticketTypeID uuid.UUID,
	name string,
	priceCents int64,
) error {
	const op = "postgres.EventRepo.UpdateTicketType"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE ticket_types
         SET name = $2, price_cents = $3, updated_at = now()
      	 WHERE id = $1`,
		ticketTypeID, name, priceCents,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.VenueName,
		&e.IsPublished, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgres.EventRepo.Get"

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
