package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evlync/evlync/internal/credential"
	"github.com/evlync/evlync/internal/domain"
	"github.com/evlync/evlync/internal/metrics"
	"github.com/evlync/evlync/internal/notifier"
	"github.com/evlync/evlync/internal/repository"
	postgresrepo "github.com/evlync/evlync/internal/repository/postgres"
	redisrepo "github.com/evlync/evlync/internal/repository/redis"
	redisx "github.com/evlync/evlync/internal/redis"
	"github.com/evlync/evlync/internal/uow"
)

// Line is one requested (ticket type, quantity) pair of a checkout.
type Line struct {
	TicketTypeID uuid.UUID
	Quantity     int
}

type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

type Service struct {
	store    *postgresrepo.Store
	cache    *redisrepo.Cache
	pubsub   *redisx.EventsPubSub
	limiter  *redisrepo.SlidingWindowLimiter
	notifier notifier.Notifier
	uow      *uow.UoW
	logger   *slog.Logger
	cfg      Config
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.EventsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	n notifier.Notifier,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}

	if cfg.MaxPageSize <= 0 || cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = 200
	}

	return &Service{
		store:    store,
		cache:    cache,
		pubsub:   pubsub,
		limiter:  limiter,
		notifier: n,
		uow:      uow.NewUoW(store),
		logger:   logger,
		cfg:      cfg,
	}
}

// NormalizeLines validates and orders checkout lines. Lines come back
// sorted by ticket-type ID so concurrent multi-line orders always lock
// ticket-type rows in the same order and cannot deadlock each other.
func NormalizeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	out := make([]Line, len(lines))
	copy(out, lines)

	for _, l := range out {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if l.TicketTypeID == uuid.Nil {
			return nil, ErrTicketTypeNotFound
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].TicketTypeID.String(), out[j].TicketTypeID.String()) < 0
	})

	return out, nil
}

// Create runs the immediate-settlement ("free") checkout: one transaction
// reserves inventory, persists the order aggregate with a snapshotted unit
// price and an issued verifier per line item, records a completed payment,
// and marks the order paid. On any line failing, nothing at all commits.
//
// Returns:
//   - *domain.OrderWithItems: the committed order.
//   - error: orders.ErrEventNotFound, orders.ErrTicketTypeNotFound,
//     orders.ErrInvalidQuantity, orders.ErrEmptyOrder,
//     orders.ErrInsufficientInventory, orders.ErrRateLimited.
func (s *Service) Create(
	ctx context.Context,
	caller domain.Caller,
	eventID uuid.UUID,
	lines []Line,
	rlKey string,
) (*domain.OrderWithItems, error) {
	const op = "service.orders.Create"

	lines, err := NormalizeLines(lines)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w: retry in %s", op, ErrRateLimited, retry)
		}
	}

	var out *domain.OrderWithItems

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		o, err := s.assemble(ctx, tx, caller, eventID, lines, true)
		if err != nil {
			return err
		}

		out = o

		after(func(ctx context.Context) {
			metrics.OrdersCreated.WithLabelValues("free").Inc()
			_ = s.cache.InvalidateEvent(ctx, eventID)
			_ = s.pubsub.PublishEventChanged(ctx, eventID)
			s.notifyConfirmation(ctx, caller, o.Order)
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientInventory) {
			metrics.OrdersRejected.WithLabelValues("inventory").Inc()
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Assemble builds the order aggregate inside an open transaction. Shared
// with the deferred-settlement path, which owns its payment record and
// leaves credential issuance to reconciliation (withCredentials=false).
func (s *Service) Assemble(
	ctx context.Context,
	tx postgresrepo.DB,
	caller domain.Caller,
	eventID uuid.UUID,
	lines []Line,
) (*domain.OrderWithItems, error) {
	return s.assemble(ctx, tx, caller, eventID, lines, false)
}

func (s *Service) assemble(
	ctx context.Context,
	tx postgresrepo.DB,
	caller domain.Caller,
	eventID uuid.UUID,
	lines []Line,
	immediate bool,
) (*domain.OrderWithItems, error) {
	if _, err := s.store.Query().With(tx).GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	orderID, err := s.store.Orders().With(tx).Create(ctx, caller.ID, eventID, domain.OrderPending)
	if err != nil {
		return nil, err
	}

	var (
		total int64
		items []domain.OrderItem
	)

	for _, l := range lines {
		tt, err := s.store.Query().With(tx).GetTicketType(ctx, l.TicketTypeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrTicketTypeNotFound
			}
			return nil, err
		}

		// A ticket type of another event is treated as absent, matching
		// the not-found contract rather than leaking its existence.
		if tt.EventID != eventID {
			return nil, ErrTicketTypeNotFound
		}

		// The conditional update is the authoritative availability check.
		if err := s.store.Inventory().With(tx).Reserve(ctx, tt.ID, l.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientInventory) {
				return nil, ErrInsufficientInventory
			}
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrTicketTypeNotFound
			}
			return nil, err
		}

		itemID, err := s.store.Orders().
			With(tx).
			CreateItem(ctx, orderID, tt.ID, l.Quantity, tt.PriceCents, "")
		if err != nil {
			return nil, err
		}

		item := domain.OrderItem{
			ID:             itemID,
			OrderID:        orderID,
			TicketTypeID:   tt.ID,
			Quantity:       l.Quantity,
			UnitPriceCents: tt.PriceCents,
		}

		if immediate {
			v := credential.Issue(orderID, itemID, caller.ID)
			if err := s.store.Orders().With(tx).SetItemVerifier(ctx, itemID, v); err != nil {
				return nil, err
			}
			item.Verifier = v
		}

		total += tt.PriceCents * int64(l.Quantity)
		items = append(items, item)
	}

	if err := s.store.Orders().With(tx).SetTotal(ctx, orderID, total); err != nil {
		return nil, err
	}

	status := domain.OrderPending
	if immediate {
		if _, err := s.store.Payments().With(tx).Create(
			ctx, orderID, total, domain.ProviderFree, domain.PaymentCompleted, nil,
		); err != nil {
			return nil, err
		}

		if err := s.store.Orders().With(tx).TransitionStatus(ctx, orderID, domain.OrderPaid); err != nil {
			return nil, err
		}
		status = domain.OrderPaid
	}

	return &domain.OrderWithItems{
		Order: domain.Order{
			ID:         orderID,
			UserID:     caller.ID,
			EventID:    eventID,
			TotalCents: total,
			Status:     status,
			CreatedAt:  time.Now(),
		},
		Items: items,
	}, nil
}

// Cancel moves a pending order to cancelled and hands its reservations
// back. The order row lock serializes cancellation against a racing
// payment callback; whichever commits first wins and the loser observes a
// terminal status.
//
// Returns:
//   - error: orders.ErrOrderNotFound, orders.ErrForbidden,
//     orders.ErrOrderTerminal when the order already reached a terminal state.
func (s *Service) Cancel(ctx context.Context, caller domain.Caller, orderID uuid.UUID) error {
	const op = "service.orders.Cancel"

	var eventID uuid.UUID

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		o, err := s.store.Orders().With(tx).GetForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if o.UserID != caller.ID && !caller.IsAdmin() {
			return ErrForbidden
		}

		if o.Status.Terminal() {
			return ErrOrderTerminal
		}

		eventID = o.EventID

		if err := s.store.Orders().With(tx).TransitionStatus(ctx, orderID, domain.OrderCancelled); err != nil {
			if errors.Is(err, repository.ErrStatusTerminal) {
				return ErrOrderTerminal
			}
			return err
		}

		// An in-flight deferred payment is closed out with the order.
		if p, err := s.store.Payments().With(tx).GetByOrderForUpdate(ctx, orderID); err == nil {
			if !p.Status.Terminal() {
				if err := s.store.Payments().With(tx).TransitionStatus(ctx, p.ID, domain.PaymentFailed); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		items, err := s.store.Orders().With(tx).ListItems(ctx, orderID)
		if err != nil {
			return err
		}

		for _, it := range items {
			if err := s.store.Inventory().With(tx).ReleaseItem(ctx, it.ID); err != nil &&
				!errors.Is(err, repository.ErrAlreadyReleased) {
				return err
			}
		}

		after(func(ctx context.Context) {
			_ = s.cache.InvalidateEvent(ctx, eventID)
			_ = s.pubsub.PublishEventChanged(ctx, eventID)
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Get retrieves an order with its items for its purchaser or an admin.
func (s *Service) Get(
	ctx context.Context,
	caller domain.Caller,
	orderID uuid.UUID,
) (*domain.OrderWithItems, error) {
	const op = "service.orders.Get"

	o, err := s.store.Query().GetOrderWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if o.Order.UserID != caller.ID && !caller.IsAdmin() {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	return o, nil
}

// ListForUser retrieves the caller's own orders.
func (s *Service) ListForUser(
	ctx context.Context,
	caller domain.Caller,
	limit, offset int,
) ([]domain.Order, error) {
	const op = "service.orders.ListForUser"

	limit = s.clampPage(limit)

	list, err := s.store.Query().ListOrdersByUser(ctx, caller.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return list, nil
}

// ListForEvent retrieves an event's orders for its organizer or an admin.
func (s *Service) ListForEvent(
	ctx context.Context,
	caller domain.Caller,
	eventID uuid.UUID,
	limit, offset int,
) ([]domain.Order, error) {
	const op = "service.orders.ListForEvent"

	e, err := s.store.Query().GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !caller.CanManageEvent(e.OrganizerID) {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	limit = s.clampPage(limit)

	list, err := s.store.Query().ListOrdersByEvent(ctx, eventID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return list, nil
}

func (s *Service) notifyConfirmation(ctx context.Context, caller domain.Caller, o domain.Order) {
	if s.notifier == nil || caller.Email == "" {
		return
	}

	subject, content := notifier.OrderConfirmation(o.ID.String(), o.TotalCents)
	if !s.notifier.Send(ctx, caller.Email, subject, content) {
		s.logger.Warn("order confirmation not delivered",
			"order_id", o.ID, "recipient", caller.Email)
	}
}

func (s *Service) clampPage(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultPageSize
	}

	if limit > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}

	return limit
}
