package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/evlync/evlync/internal/domain"
	"github.com/evlync/evlync/internal/repository"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentRepo) With(db DB) *PaymentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *PaymentRepo) Create(
	ctx context.Context,
	orderID uuid.UUID,
	amountCents int64,
	provider domain.PaymentProvider,
	status domain.PaymentStatus,
	providerReference *string,
) (uuid.UUID, error) {
	const op = "postgres.PaymentRepo.Create"

	db := r.handle()

	id := uuid.New()
	if _, err := db.Exec(ctx,
		`INSERT INTO payments(id, order_id, amount_cents, provider, status, provider_reference)
       	 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, orderID, amountCents, provider, status, providerReference,
	); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return id, nil
}

func (r *PaymentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.Get"

	db := r.handle()

	var p domain.Payment
	err := db.QueryRow(ctx,
		`SELECT id, order_id, amount_cents, provider, status, provider_reference, created_at, updated_at
       	 FROM payments WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Provider, &p.Status,
		&p.ProviderReference, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

// GetByProviderReference resolves a gateway reference without taking a
// row lock. Callers that intend to mutate must lock the order row first
// and then re-read the payment under GetByOrderForUpdate, so every writer
// acquires the two rows in the same order.
func (r *PaymentRepo) GetByProviderReference(
	ctx context.Context,
	providerReference string,
) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.GetByProviderReference"

	db := r.handle()

	var p domain.Payment
	err := db.QueryRow(ctx,
		`SELECT id, order_id, amount_cents, provider, status, provider_reference, created_at, updated_at
       	 FROM payments WHERE provider_reference = $1`,
		providerReference,
	).Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Provider, &p.Status,
		&p.ProviderReference, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

func (r *PaymentRepo) GetByOrderForUpdate(
	ctx context.Context,
	orderID uuid.UUID,
) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.GetByOrderForUpdate"

	db := r.handle()

	var p domain.Payment
	err := db.QueryRow(ctx,
		`SELECT id, order_id, amount_cents, provider, status, provider_reference, created_at, updated_at
       	 FROM payments WHERE order_id = $1
       	 FOR UPDATE`,
		orderID,
	).Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Provider, &p.Status,
		&p.ProviderReference, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &p, nil
}

// TransitionStatus moves a payment out of pending; terminal payments
// never move again.
func (r *PaymentRepo) TransitionStatus(
	ctx context.Context,
	paymentID uuid.UUID,
	to domain.PaymentStatus,
) error {
	const op = "postgres.PaymentRepo.TransitionStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE payments
         SET status = $2, updated_at = now()
      	 WHERE id = $1 AND status = 'pending'`,
		paymentID, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`,
		paymentID,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrStatusTerminal)
}
