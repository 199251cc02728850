package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evlync/evlync/internal/credential"
	"github.com/evlync/evlync/internal/domain"
	"github.com/evlync/evlync/internal/metrics"
	"github.com/evlync/evlync/internal/repository"
	postgresrepo "github.com/evlync/evlync/internal/repository/postgres"
	"github.com/evlync/evlync/internal/uow"
)

type Service struct {
	store  *postgresrepo.Store
	uow    *uow.UoW
	logger *slog.Logger
}

func New(store *postgresrepo.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		uow:    uow.NewUoW(store),
		logger: logger,
	}
}

// Result is what the door staff sees for a presented code.
type Result struct {
	Item       domain.OrderItem
	Order      domain.Order
	TicketType domain.TicketType
}

// Verify resolves a presented code against the event without admitting
// anyone. Staff use it to preview a ticket before committing the check-in.
//
// Returns:
//   - *Result: the matched line item with its order and ticket type.
//   - error: checkin.ErrEventNotFound, checkin.ErrForbidden,
//     checkin.ErrInvalidCode when the code matches nothing admitable.
func (s *Service) Verify(
	ctx context.Context,
	caller domain.Caller,
	eventID uuid.UUID,
	presented string,
) (*Result, error) {
	const op = "service.checkin.Verify"

	res, err := s.resolve(ctx, nil, caller, eventID, presented)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// Commit admits the holder of a presented code. The checked_in guard in
// the update makes the second scan of the same code come back as already
// used, with the first admission's timestamp and staff untouched.
//
// Returns:
//   - *Result: the admitted line item, with check-in metadata filled in.
//   - error: checkin.ErrEventNotFound, checkin.ErrForbidden,
//     checkin.ErrInvalidCode, checkin.ErrAlreadyCheckedIn.
func (s *Service) Commit(
	ctx context.Context,
	caller domain.Caller,
	eventID uuid.UUID,
	presented string,
) (*Result, error) {
	const op = "service.checkin.Commit"

	var out *Result

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		res, err := s.resolve(ctx, tx, caller, eventID, presented)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.store.Orders().With(tx).MarkCheckedIn(ctx, res.Item.ID, caller.ID, now); err != nil {
			if errors.Is(err, repository.ErrAlreadyCheckedIn) {
				return ErrAlreadyCheckedIn
			}
			return err
		}

		res.Item.CheckedIn = true
		res.Item.CheckedInAt = &now
		staffID := caller.ID
		res.Item.CheckedInBy = &staffID

		out = res

		after(func(ctx context.Context) {
			metrics.CheckIns.WithLabelValues("admitted").Inc()
			s.logger.Info("ticket checked in",
				"event_id", eventID, "order_item_id", res.Item.ID, "staff_id", caller.ID)
		})

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyCheckedIn):
			metrics.CheckIns.WithLabelValues("already_used").Inc()
		case errors.Is(err, ErrInvalidCode):
			metrics.CheckIns.WithLabelValues("invalid").Inc()
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// resolve maps a presented code to an admitable line item of the event.
// tx is nil on the read-only preview path.
func (s *Service) resolve(
	ctx context.Context,
	tx postgresrepo.DB,
	caller domain.Caller,
	eventID uuid.UUID,
	presented string,
) (*Result, error) {
	e, err := s.store.Query().With(tx).GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	if !caller.CanManageEvent(e.OrganizerID) {
		return nil, ErrForbidden
	}

	// Scanners may submit the raw verifier or the full QR payload.
	verifier, ok := credential.ExtractVerifier(presented)
	if !ok {
		return nil, ErrInvalidCode
	}

	it, err := s.store.Orders().With(tx).FindItemByVerifier(ctx, eventID, verifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	o, err := s.store.Orders().With(tx).Get(ctx, it.OrderID)
	if err != nil {
		return nil, err
	}

	// A code from an unpaid or cancelled order admits nobody, no matter
	// how well-formed it is.
	if o.Status != domain.OrderPaid && o.Status != domain.OrderCompleted {
		return nil, ErrInvalidCode
	}

	tt, err := s.store.Query().With(tx).GetTicketType(ctx, it.TicketTypeID)
	if err != nil {
		return nil, err
	}

	return &Result{Item: *it, Order: *o, TicketType: *tt}, nil
}
