package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evlync/evlync/internal/domain"
	"github.com/evlync/evlync/internal/repository"
	postgresrepo "github.com/evlync/evlync/internal/repository/postgres"
	redisrepo "github.com/evlync/evlync/internal/repository/redis"
)

type Config struct {
	EventTTL  time.Duration
	TicketTTL time.Duration
}

// Service answers the public read paths. Event summaries tolerate a short
// cache TTL; ticket availability uses an even shorter one because sold
// counts move while an event is on sale.
type Service struct {
	store  *postgresrepo.Store
	cache  *redisrepo.Cache
	logger *slog.Logger
	cfg    Config
}

func New(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = 60 * time.Second
	}

	if cfg.TicketTTL <= 0 {
		cfg.TicketTTL = 5 * time.Second
	}

	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		cfg:    cfg,
	}
}

// GetEvent retrieves one event summary, cache-first. Unpublished events
// are invisible on this path; organizers manage drafts through the admin
// surface.
//
// Returns:
//   - *domain.Event: the event.
//   - error: query.ErrEventNotFound.
func (s *Service) GetEvent(ctx context.Context, eventID uuid.UUID) (*domain.Event, error) {
	const op = "service.query.GetEvent"

	e, err := redisrepo.GetOrSetJSON(
		ctx, s.cache, redisrepo.KeyEventSummary(eventID), s.cfg.EventTTL,
		func(ctx context.Context) (domain.Event, error) {
			ev, err := s.store.Query().GetEvent(ctx, eventID)
			if err != nil {
				return domain.Event{}, err
			}
			return *ev, nil
		},
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !e.IsPublished {
		return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
	}

	return &e, nil
}

// ListTicketAvailability retrieves the event's ticket types with their
// derived remaining quantity. A stale read here is fine: checkout still
// goes through the authoritative conditional update, which is the only
// place that decides whether an order fits.
//
// Returns:
//   - []domain.TicketTypeAvailability: id-ordered ticket types.
//   - error: query.ErrEventNotFound.
func (s *Service) ListTicketAvailability(
	ctx context.Context,
	eventID uuid.UUID,
) ([]domain.TicketTypeAvailability, error) {
	const op = "service.query.ListTicketAvailability"

	// Visibility follows the summary: missing and unpublished events
	// alike answer not-found.
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	out, err := redisrepo.GetOrSetJSON(
		ctx, s.cache, redisrepo.KeyEventTicketTypes(eventID), s.cfg.TicketTTL,
		func(ctx context.Context) ([]domain.TicketTypeAvailability, error) {
			tts, err := s.store.Query().ListTicketTypes(ctx, eventID)
			if err != nil {
				return nil, err
			}

			avail := make([]domain.TicketTypeAvailability, 0, len(tts))
			for _, tt := range tts {
				avail = append(avail, domain.TicketTypeAvailability{
					TicketType:        tt,
					QuantityAvailable: tt.QuantityAvailable(),
				})
			}

			return avail, nil
		},
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
