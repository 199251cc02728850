//go:build integration

// These tests need live backing stores:
//
//	TEST_DATABASE_URL=postgres://... TEST_REDIS_ADDR=localhost:6379 \
//	  go test -tags integration ./internal/service/
//
// The schema is dropped and re-applied from migrations/001_init.sql on
// every run.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlync/evlync/internal/domain"
	"github.com/evlync/evlync/internal/gateway/mpesa"
	"github.com/evlync/evlync/internal/notifier"
	pgdb "github.com/evlync/evlync/internal/postgres"
	redisx "github.com/evlync/evlync/internal/redis"
	postgresrepo "github.com/evlync/evlync/internal/repository/postgres"
	redisrepo "github.com/evlync/evlync/internal/repository/redis"
	"github.com/evlync/evlync/internal/service/checkin"
	"github.com/evlync/evlync/internal/service/orders"
	"github.com/evlync/evlync/internal/service/payments"
)

type stubGateway struct{}

func (stubGateway) InitiateSTKPush(
	ctx context.Context,
	phone string,
	amountCents int64,
	accountReference string,
	description string,
) (*mpesa.STKPushResult, error) {
	return &mpesa.STKPushResult{CheckoutRequestID: "CRQ-" + uuid.NewString()}, nil
}

type testEnv struct {
	pool     *pgxpool.Pool
	store    *postgresrepo.Store
	orders   *orders.Service
	payments *payments.Service
	checkin  *checkin.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	addr := os.Getenv("TEST_REDIS_ADDR")
	if dsn == "" || addr == "" {
		t.Skip("TEST_DATABASE_URL and TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()

	pool, err := pgdb.New(ctx, pgdb.Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx,
		`DROP TABLE IF EXISTS payments, order_items, orders, ticket_types, events CASCADE`)
	require.NoError(t, err)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	rdb, err := redisx.New(ctx, redisx.Config{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := postgresrepo.NewStore(pool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewEventsPubSub(rdb)
	n := &notifier.LogNotifier{Logger: logger}

	ordersSvc := orders.New(store, cache, pubsub, nil, n, logger, orders.Config{})

	return &testEnv{
		pool:     pool,
		store:    store,
		orders:   ordersSvc,
		payments: payments.New(store, cache, pubsub, ordersSvc, stubGateway{}, logger),
		checkin:  checkin.New(store, logger),
	}
}

func (e *testEnv) seedEvent(t *testing.T, organizer uuid.UUID) uuid.UUID {
	t.Helper()

	id, err := e.store.Events().Create(context.Background(), &domain.Event{
		OrganizerID: organizer,
		Title:       "Integration Night",
		IsPublished: true,
		StartsAt:    time.Now().Add(24 * time.Hour),
		EndsAt:      time.Now().Add(28 * time.Hour),
	})
	require.NoError(t, err)

	return id
}

func (e *testEnv) seedTicketType(
	t *testing.T,
	eventID uuid.UUID,
	priceCents int64,
	quantity int,
) uuid.UUID {
	t.Helper()

	id, err := e.store.Events().CreateTicketType(
		context.Background(), eventID, "GA", priceCents, quantity)
	require.NoError(t, err)

	return id
}

func (e *testEnv) quantitySold(t *testing.T, ticketTypeID uuid.UUID) int {
	t.Helper()

	tt, err := e.store.Query().GetTicketType(context.Background(), ticketTypeID)
	require.NoError(t, err)

	return tt.QuantitySold
}

// Eight buyers race for three units; exactly three orders commit and the
// sold counter never exceeds capacity.
func TestConcurrentReservationNeverOversells(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	organizer := domain.Caller{ID: uuid.New(), Role: domain.RoleOrganizer}
	eventID := env.seedEvent(t, organizer.ID)
	ttID := env.seedTicketType(t, eventID, 0, 3)

	const buyers = 8
	errs := make(chan error, buyers)

	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buyer := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}
			_, err := env.orders.Create(ctx, buyer, eventID,
				[]orders.Line{{TicketTypeID: ttID, Quantity: 1}}, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won, lost int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, orders.ErrInsufficientInventory):
			lost++
		}
	}

	assert.Equal(t, 3, won)
	assert.Equal(t, 5, lost)
	assert.Equal(t, 3, env.quantitySold(t, ttID))
}

// A failing second line rolls the whole order back, including the first
// line's already-applied reservation.
func TestMultiLineOrderRollsBackAtomically(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	organizer := domain.Caller{ID: uuid.New(), Role: domain.RoleOrganizer}
	eventID := env.seedEvent(t, organizer.ID)
	ttA := env.seedTicketType(t, eventID, 0, 5)
	ttB := env.seedTicketType(t, eventID, 0, 0)

	buyer := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}
	_, err := env.orders.Create(ctx, buyer, eventID, []orders.Line{
		{TicketTypeID: ttA, Quantity: 1},
		{TicketTypeID: ttB, Quantity: 1},
	}, "")
	require.ErrorIs(t, err, orders.ErrInsufficientInventory)

	assert.Equal(t, 0, env.quantitySold(t, ttA))
	assert.Equal(t, 0, env.quantitySold(t, ttB))
}

// Replaying a successful gateway callback settles the order exactly once;
// the second delivery reports the conflict and changes nothing.
func TestCallbackReplayIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	organizer := domain.Caller{ID: uuid.New(), Role: domain.RoleOrganizer}
	eventID := env.seedEvent(t, organizer.ID)
	ttID := env.seedTicketType(t, eventID, 150000, 10)

	buyer := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}
	res, err := env.payments.Initiate(ctx, buyer, eventID, "254712345678",
		[]orders.Line{{TicketTypeID: ttID, Quantity: 2}})
	require.NoError(t, err)

	p, err := env.store.Payments().Get(ctx, res.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, p.ProviderReference)
	ref := *p.ProviderReference

	require.NoError(t, env.payments.Reconcile(ctx, ref, mpesa.ResultSuccess))

	settled, err := env.store.Query().GetOrderWithItems(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, settled.Order.Status)
	for _, it := range settled.Items {
		assert.NotEmpty(t, it.Verifier)
	}

	err = env.payments.Reconcile(ctx, ref, mpesa.ResultSuccess)
	require.ErrorIs(t, err, payments.ErrAlreadyReconciled)
	assert.Equal(t, 2, env.quantitySold(t, ttID))
}

// A cancellation and a gateway callback race for the same pending order.
// Both lock the order row before the payment row, so whichever commits
// first wins cleanly and the loser observes the terminal state instead of
// deadlocking.
func TestCancelAndCallbackRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	organizer := domain.Caller{ID: uuid.New(), Role: domain.RoleOrganizer}
	eventID := env.seedEvent(t, organizer.ID)
	ttID := env.seedTicketType(t, eventID, 100000, 100)

	var sold int
	for i := 0; i < 20; i++ {
		buyer := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}
		res, err := env.payments.Initiate(ctx, buyer, eventID, "254712345678",
			[]orders.Line{{TicketTypeID: ttID, Quantity: 1}})
		require.NoError(t, err)

		p, err := env.store.Payments().Get(ctx, res.PaymentID)
		require.NoError(t, err)
		ref := *p.ProviderReference

		var (
			wg                   sync.WaitGroup
			cancelErr, reconcile error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancelErr = env.orders.Cancel(ctx, buyer, res.Order.ID)
		}()
		go func() {
			defer wg.Done()
			reconcile = env.payments.Reconcile(ctx, ref, mpesa.ResultSuccess)
		}()
		wg.Wait()

		if cancelErr != nil {
			require.ErrorIs(t, cancelErr, orders.ErrOrderTerminal,
				fmt.Sprintf("iteration %d", i))
		}
		if reconcile != nil {
			require.ErrorIs(t, reconcile, payments.ErrAlreadyReconciled,
				fmt.Sprintf("iteration %d", i))
		}

		final, err := env.store.Query().GetOrderWithItems(ctx, res.Order.ID)
		require.NoError(t, err)

		pay, err := env.store.Payments().Get(ctx, res.PaymentID)
		require.NoError(t, err)

		switch final.Order.Status {
		case domain.OrderPaid:
			require.Nil(t, reconcile)
			require.NotNil(t, cancelErr)
			assert.Equal(t, domain.PaymentCompleted, pay.Status)
			sold++
		case domain.OrderCancelled:
			require.Nil(t, cancelErr)
			require.NotNil(t, reconcile)
			assert.Equal(t, domain.PaymentFailed, pay.Status)
		default:
			t.Fatalf("iteration %d: order left in %s", i, final.Order.Status)
		}
	}

	assert.Equal(t, sold, env.quantitySold(t, ttID))
}

// Scanning the same code twice admits once; the second scan reports the
// ticket as used with the first admission's metadata intact.
func TestDoubleCheckInRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	organizer := domain.Caller{ID: uuid.New(), Role: domain.RoleOrganizer}
	eventID := env.seedEvent(t, organizer.ID)
	ttID := env.seedTicketType(t, eventID, 0, 5)

	buyer := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}
	order, err := env.orders.Create(ctx, buyer, eventID,
		[]orders.Line{{TicketTypeID: ttID, Quantity: 1}}, "")
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	code := order.Items[0].Verifier

	first, err := env.checkin.Commit(ctx, organizer, eventID, code)
	require.NoError(t, err)
	assert.True(t, first.Item.CheckedIn)
	require.NotNil(t, first.Item.CheckedInAt)

	_, err = env.checkin.Commit(ctx, organizer, eventID, code)
	require.ErrorIs(t, err, checkin.ErrAlreadyCheckedIn)

	// The stored admission record still carries the first scan.
	preview, err := env.checkin.Verify(ctx, organizer, eventID, code)
	require.NoError(t, err)
	require.NotNil(t, preview.Item.CheckedInAt)
	assert.WithinDuration(t, *first.Item.CheckedInAt, *preview.Item.CheckedInAt, time.Second)
	require.NotNil(t, preview.Item.CheckedInBy)
	assert.Equal(t, organizer.ID, *preview.Item.CheckedInBy)
}
