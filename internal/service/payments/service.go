package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/evlync/evlync/internal/credential"
	"github.com/evlync/evlync/internal/domain"
	"github.com/evlync/evlync/internal/gateway/mpesa"
	"github.com/evlync/evlync/internal/metrics"
	redisx "github.com/evlync/evlync/internal/redis"
	"github.com/evlync/evlync/internal/repository"
	postgresrepo "github.com/evlync/evlync/internal/repository/postgres"
	redisrepo "github.com/evlync/evlync/internal/repository/redis"
	"github.com/evlync/evlync/internal/service/orders"
	"github.com/evlync/evlync/internal/uow"
)

// Gateway is the slice of the payment provider the reconciler needs.
type Gateway interface {
	InitiateSTKPush(
		ctx context.Context,
		phone string,
		amountCents int64,
		accountReference string,
		description string,
	) (*mpesa.STKPushResult, error)
}

type Service struct {
	store   *postgresrepo.Store
	cache   *redisrepo.Cache
	pubsub  *redisx.EventsPubSub
	orders  *orders.Service
	gateway Gateway
	uow     *uow.UoW
	logger  *slog.Logger
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.EventsPubSub,
	ordersSvc *orders.Service,
	gw Gateway,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		pubsub:  pubsub,
		orders:  ordersSvc,
		gateway: gw,
		uow:     uow.NewUoW(store),
		logger:  logger,
	}
}

type InitiateResult struct {
	Order     domain.OrderWithItems
	PaymentID uuid.UUID
}

// Initiate runs the deferred-settlement checkout. The gateway call happens
// before the transaction opens: a gateway failure is transient and leaves
// nothing committed, and no network I/O ever runs while inventory rows are
// locked. Credentials are not issued here; reconciliation issues them once
// the gateway confirms.
//
// Returns:
//   - *InitiateResult: pending order and payment awaiting the callback.
//   - error: payments.ErrInvalidPhone, payments.ErrGatewayUnavailable,
//     payments.ErrAmountChanged, plus the orders package validation errors.
func (s *Service) Initiate(
	ctx context.Context,
	caller domain.Caller,
	eventID uuid.UUID,
	phone string,
	lines []orders.Line,
) (*InitiateResult, error) {
	const op = "service.payments.Initiate"

	lines, err := orders.NormalizeLines(lines)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	phone = mpesa.NormalizePhone(phone)
	if !mpesa.ValidPhone(phone) {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidPhone)
	}

	event, err := s.store.Query().GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, orders.ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	// Pre-transaction estimate for the gateway prompt. The in-transaction
	// snapshot below is authoritative; a mismatch aborts the checkout.
	total, err := s.quoteTotal(ctx, eventID, lines)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ref := "EV-" + eventID.String()[:8]
	push, err := s.gateway.InitiateSTKPush(ctx, phone, total, ref, "Tickets: "+event.Title)
	if err != nil {
		s.logger.Error("gateway initiation failed", "event_id", eventID, "error", err)
		return nil, fmt.Errorf("%s:%w", op, ErrGatewayUnavailable)
	}

	var out InitiateResult

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		o, err := s.orders.Assemble(ctx, tx, caller, eventID, lines)
		if err != nil {
			return err
		}

		if o.Order.TotalCents != total {
			return ErrAmountChanged
		}

		providerRef := push.CheckoutRequestID
		paymentID, err := s.store.Payments().With(tx).Create(
			ctx, o.Order.ID, total, domain.ProviderMpesa, domain.PaymentPending, &providerRef,
		)
		if err != nil {
			return err
		}

		out = InitiateResult{Order: *o, PaymentID: paymentID}

		after(func(ctx context.Context) {
			metrics.OrdersCreated.WithLabelValues("mpesa").Inc()
			_ = s.cache.InvalidateEvent(ctx, eventID)
			_ = s.pubsub.PublishEventChanged(ctx, eventID)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &out, nil
}

func (s *Service) quoteTotal(
	ctx context.Context,
	eventID uuid.UUID,
	lines []orders.Line,
) (int64, error) {
	var total int64
	for _, l := range lines {
		tt, err := s.store.Query().GetTicketType(ctx, l.TicketTypeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return 0, orders.ErrTicketTypeNotFound
			}
			return 0, err
		}
		if tt.EventID != eventID {
			return 0, orders.ErrTicketTypeNotFound
		}
		total += tt.PriceCents * int64(l.Quantity)
	}
	return total, nil
}

// Reconcile applies a gateway callback. The order and payment row locks
// plus the terminal-status check make replays no-ops: the same reference
// with the same result never releases inventory or issues credentials
// twice.
//
// Returns:
//   - error: payments.ErrUnknownReference when no payment carries the
//     reference.
//   - error: payments.ErrAlreadyReconciled when the payment is already
//     terminal (replay).
func (s *Service) Reconcile(
	ctx context.Context,
	providerReference string,
	resultCode int,
) error {
	const op = "service.payments.Reconcile"

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		// Resolve the reference without a lock, then acquire the order
		// row before the payment row. Cancel locks in the same order, so
		// a concurrent cancellation and callback serialize instead of
		// deadlocking.
		ref, err := s.store.Payments().
			With(tx).
			GetByProviderReference(ctx, providerReference)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnknownReference
			}
			return err
		}

		o, err := s.store.Orders().With(tx).GetForUpdate(ctx, ref.OrderID)
		if err != nil {
			return err
		}

		p, err := s.store.Payments().With(tx).GetByOrderForUpdate(ctx, ref.OrderID)
		if err != nil {
			return err
		}

		// Re-checked under the lock: the unlocked read may have raced a
		// transition that committed in between.
		if p.Status.Terminal() {
			return ErrAlreadyReconciled
		}

		if resultCode == mpesa.ResultSuccess {
			return s.applySuccess(ctx, tx, p, o, after)
		}

		return s.applyFailure(ctx, tx, p, o, after)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) applySuccess(
	ctx context.Context,
	tx postgresrepo.DB,
	p *domain.Payment,
	o *domain.Order,
	after func(uow.AfterCommit),
) error {
	if err := s.store.Payments().With(tx).TransitionStatus(ctx, p.ID, domain.PaymentCompleted); err != nil {
		return err
	}

	if err := s.store.Orders().With(tx).TransitionStatus(ctx, o.ID, domain.OrderPaid); err != nil {
		if errors.Is(err, repository.ErrStatusTerminal) {
			// The order reached a terminal state first (e.g. cancellation
			// won the race). The payment stays as it was.
			return ErrAlreadyReconciled
		}
		return err
	}

	// Deferred credential issuance: items were persisted without a
	// verifier at checkout time.
	items, err := s.store.Orders().With(tx).ListItems(ctx, o.ID)
	if err != nil {
		return err
	}

	for _, it := range items {
		if it.Verifier != "" {
			continue
		}
		v := credential.Issue(o.ID, it.ID, o.UserID)
		if err := s.store.Orders().With(tx).SetItemVerifier(ctx, it.ID, v); err != nil {
			return err
		}
	}

	eventID := o.EventID
	after(func(ctx context.Context) {
		metrics.PaymentsReconciled.WithLabelValues("completed").Inc()
		_ = s.cache.InvalidateEvent(ctx, eventID)
		_ = s.pubsub.PublishEventChanged(ctx, eventID)
	})

	return nil
}

func (s *Service) applyFailure(
	ctx context.Context,
	tx postgresrepo.DB,
	p *domain.Payment,
	o *domain.Order,
	after func(uow.AfterCommit),
) error {
	if err := s.store.Payments().With(tx).TransitionStatus(ctx, p.ID, domain.PaymentFailed); err != nil {
		return err
	}

	if err := s.store.Orders().With(tx).TransitionStatus(ctx, o.ID, domain.OrderFailed); err != nil {
		if errors.Is(err, repository.ErrStatusTerminal) {
			return ErrAlreadyReconciled
		}
		return err
	}

	items, err := s.store.Orders().With(tx).ListItems(ctx, o.ID)
	if err != nil {
		return err
	}

	for _, it := range items {
		if err := s.store.Inventory().With(tx).ReleaseItem(ctx, it.ID); err != nil &&
			!errors.Is(err, repository.ErrAlreadyReleased) {
			return err
		}
	}

	eventID := o.EventID
	after(func(ctx context.Context) {
		metrics.PaymentsReconciled.WithLabelValues("failed").Inc()
		_ = s.cache.InvalidateEvent(ctx, eventID)
		_ = s.pubsub.PublishEventChanged(ctx, eventID)
	})

	return nil
}

// Status retrieves a payment for the purchaser that owns its order.
func (s *Service) Status(
	ctx context.Context,
	caller domain.Caller,
	paymentID uuid.UUID,
) (*domain.Payment, error) {
	const op = "service.payments.Status"

	p, err := s.store.Payments().Get(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	o, err := s.store.Orders().Get(ctx, p.OrderID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if o.UserID != caller.ID && !caller.IsAdmin() {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	return p, nil
}
