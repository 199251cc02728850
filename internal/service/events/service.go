package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evlync/evlync/internal/domain"
	redisx "github.com/evlync/evlync/internal/redis"
	"github.com/evlync/evlync/internal/repository"
	postgresrepo "github.com/evlync/evlync/internal/repository/postgres"
	redisrepo "github.com/evlync/evlync/internal/repository/redis"
	"github.com/evlync/evlync/internal/uow"
)

// EventInput carries the organizer-editable fields of an event.
type EventInput struct {
	Title       string
	Description string
	VenueName   string
	IsPublished bool
	StartsAt    time.Time
	EndsAt      time.Time
}

// TicketTypeInput carries the organizer-editable fields of a ticket type.
// QuantityTotal below the current sold count is rejected.
type TicketTypeInput struct {
	Name          string
	PriceCents    int64
	QuantityTotal int
}

type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	pubsub *redisx.EventsPubSub
	uow    *uow.UoW
	logger *slog.Logger
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.EventsPubSub,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
		logger: logger,
	}
}

func (in EventInput) validate() error {
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !in.EndsAt.IsZero() && !in.StartsAt.IsZero() && in.EndsAt.Before(in.StartsAt) {
		return fmt.Errorf("%w: ends_at before starts_at", ErrInvalidInput)
	}
	return nil
}

func (in TicketTypeInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.PriceCents < 0 {
		return fmt.Errorf("%w: negative price", ErrInvalidInput)
	}
	if in.QuantityTotal < 0 {
		return fmt.Errorf("%w: negative capacity", ErrInvalidInput)
	}
	return nil
}

// CreateEvent registers a new event owned by the caller. Admins may create
// events on behalf of any organizer via in-band organizer assignment at the
// transport layer; here the caller is always the owner.
//
// Returns:
//   - *domain.Event: the created event.
//   - error: events.ErrForbidden, events.ErrInvalidInput.
func (s *Service) CreateEvent(
	ctx context.Context,
	caller domain.Caller,
	in EventInput,
) (*domain.Event, error) {
	const op = "service.events.CreateEvent"

	if !caller.IsOrganizer() && !caller.IsAdmin() {
		return nil, fmt.Errorf("%s:%w", op, ErrForbidden)
	}

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	e := &domain.Event{
		OrganizerID: caller.ID,
		Title:       in.Title,
		Description: in.Description,
		VenueName:   in.VenueName,
		IsPublished: in.IsPublished,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
	}

	id, err := s.store.Events().Create(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	e.ID = id
	e.CreatedAt = time.Now()

	s.logger.Info("event created", "event_id", id, "organizer_id", caller.ID)

	return e, nil
}

// UpdateEvent replaces the editable fields of an event.
//
// Returns:
//   - error: events.ErrEventNotFound, events.ErrForbidden,
//     events.ErrInvalidInput.
func (s *Service) UpdateEvent(
	ctx context.Context,
	caller domain.Caller,
	eventID uuid.UUID,
	in EventInput,
) (*domain.Event, error) {
	const op = "service.events.UpdateEvent"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	e, err := s.authorize(ctx, caller, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	e.Title = in.Title
	e.Description = in.Description
	e.VenueName = in.VenueName
	e.IsPublished = in.IsPublished
	e.StartsAt = in.StartsAt
	e.EndsAt = in.EndsAt

	if err := s.store.Events().Update(ctx, e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.invalidate(ctx, eventID)

	return e, nil
}

// DeleteEvent removes an event and, through the schema's cascades, its
// ticket types, orders and payments.
//
// Returns:
//   - error: events.ErrEventNotFound, events.ErrForbidden.
func (s *Service) DeleteEvent(ctx context.Context, caller domain.Caller, eventID uuid.UUID) error {
	const op = "service.events.DeleteEvent"

	if _, err := s.authorize(ctx, caller, eventID); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := s.store.Events().Delete(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	s.invalidate(ctx, eventID)
	s.logger.Info("event deleted", "event_id", eventID, "caller_id", caller.ID)

	return nil
}

// CreateTicketType adds a ticket type with a fixed initial capacity and a
// sold count of zero.
//
// Returns:
//   - *domain.TicketType: the created ticket type.
//   - error: events.ErrEventNotFound, events.ErrForbidden,
//     events.ErrInvalidInput.
func (s *Service) CreateTicketType(
	ctx context.Context,
	caller domain.Caller,
	eventID uuid.UUID,
	in TicketTypeInput,
) (*domain.TicketType, error) {
	const op = "service.events.CreateTicketType"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if _, err := s.authorize(ctx, caller, eventID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	id, err := s.store.Events().CreateTicketType(ctx, eventID, in.Name, in.PriceCents, in.QuantityTotal)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.invalidate(ctx, eventID)

	return &domain.TicketType{
		ID:            id,
		EventID:       eventID,
		Name:          in.Name,
		PriceCents:    in.PriceCents,
		QuantityTotal: in.QuantityTotal,
		CreatedAt:     time.Now(),
	}, nil
}

// UpdateTicketType edits a ticket type. Name and price apply directly;
// a capacity change goes through the guarded adjustment so it can never
// drop below what has already been sold. All of it commits atomically.
//
// Returns:
//   - error: events.ErrEventNotFound, events.ErrTicketTypeNotFound,
//     events.ErrForbidden, events.ErrInvalidInput,
//     events.ErrCapacityBelowSold.
func (s *Service) UpdateTicketType(
	ctx context.Context,
	caller domain.Caller,
	eventID, ticketTypeID uuid.UUID,
	in TicketTypeInput,
) (*domain.TicketType, error) {
	const op = "service.events.UpdateTicketType"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if _, err := s.authorize(ctx, caller, eventID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var out *domain.TicketType

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		tt, err := s.store.Query().With(tx).GetTicketType(ctx, ticketTypeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTicketTypeNotFound
			}
			return err
		}

		if tt.EventID != eventID {
			return ErrTicketTypeNotFound
		}

		if err := s.store.Events().With(tx).UpdateTicketType(ctx, ticketTypeID, in.Name, in.PriceCents); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTicketTypeNotFound
			}
			return err
		}

		if in.QuantityTotal != tt.QuantityTotal {
			if err := s.store.Inventory().With(tx).AdjustCapacity(ctx, ticketTypeID, in.QuantityTotal); err != nil {
				if errors.Is(err, repository.ErrCapacityBelowSold) {
					return ErrCapacityBelowSold
				}
				if errors.Is(err, repository.ErrNotFound) {
					return ErrTicketTypeNotFound
				}
				return err
			}
		}

		tt.Name = in.Name
		tt.PriceCents = in.PriceCents
		tt.QuantityTotal = in.QuantityTotal
		out = tt

		after(func(ctx context.Context) {
			s.invalidate(ctx, eventID)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Service) authorize(
	ctx context.Context,
	caller domain.Caller,
	eventID uuid.UUID,
) (*domain.Event, error) {
	e, err := s.store.Events().Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	if !caller.CanManageEvent(e.OrganizerID) {
		return nil, ErrForbidden
	}

	return e, nil
}

func (s *Service) invalidate(ctx context.Context, eventID uuid.UUID) {
	if err := s.cache.InvalidateEvent(ctx, eventID); err != nil {
		s.logger.Warn("cache invalidation failed", "event_id", eventID, "error", err)
	}
	_ = s.pubsub.PublishEventChanged(ctx, eventID)
}
