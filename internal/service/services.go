package service

import (
	"log/slog"

	"github.com/evlync/evlync/internal/notifier"
	redisx "github.com/evlync/evlync/internal/redis"
	postgres "github.com/evlync/evlync/internal/repository/postgres"
	redis "github.com/evlync/evlync/internal/repository/redis"
	"github.com/evlync/evlync/internal/service/checkin"
	"github.com/evlync/evlync/internal/service/events"
	"github.com/evlync/evlync/internal/service/orders"
	"github.com/evlync/evlync/internal/service/payments"
	"github.com/evlync/evlync/internal/service/query"
)

type Services struct {
	Orders   *orders.Service
	Payments *payments.Service
	CheckIn  *checkin.Service
	Events   *events.Service
	Query    *query.Service
}

type Config struct {
	Orders orders.Config
	Query  query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redisx.EventsPubSub,
	limiter *redis.SlidingWindowLimiter,
	n notifier.Notifier,
	gw payments.Gateway,
	logger *slog.Logger,
	cfg Config,
) *Services {
	ordersSvc := orders.New(store, cache, pubsub, limiter, n, logger, cfg.Orders)

	return &Services{
		Orders:   ordersSvc,
		Payments: payments.New(store, cache, pubsub, ordersSvc, gw, logger),
		CheckIn:  checkin.New(store, logger),
		Events:   events.New(store, cache, pubsub, logger),
		Query:    query.New(store, cache, logger, cfg.Query),
	}
}
