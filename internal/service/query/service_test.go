package query

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlync/evlync/internal/domain"
	redisrepo "github.com/evlync/evlync/internal/repository/redis"
)

func newCachedService(t *testing.T) (*Service, redismock.ClientMock) {
	t.Helper()

	rdb, mock := redismock.NewClientMock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(nil, redisrepo.New(rdb), logger, Config{}), mock
}

func cacheJSON(t *testing.T, v any) string {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)

	return string(b)
}

func TestGetEvent_Published(t *testing.T) {
	svc, mock := newCachedService(t)

	eventID := uuid.New()
	ev := domain.Event{ID: eventID, Title: "Launch Night", IsPublished: true}
	mock.ExpectGet(redisrepo.KeyEventSummary(eventID)).SetVal(cacheJSON(t, ev))

	got, err := svc.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	assert.Equal(t, "Launch Night", got.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEvent_UnpublishedHidden(t *testing.T) {
	svc, mock := newCachedService(t)

	eventID := uuid.New()
	ev := domain.Event{ID: eventID, Title: "Draft", IsPublished: false}
	mock.ExpectGet(redisrepo.KeyEventSummary(eventID)).SetVal(cacheJSON(t, ev))

	_, err := svc.GetEvent(context.Background(), eventID)
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestListTicketAvailability_UnpublishedHidden(t *testing.T) {
	svc, mock := newCachedService(t)

	eventID := uuid.New()
	ev := domain.Event{ID: eventID, Title: "Draft", IsPublished: false}
	mock.ExpectGet(redisrepo.KeyEventSummary(eventID)).SetVal(cacheJSON(t, ev))

	_, err := svc.ListTicketAvailability(context.Background(), eventID)
	require.ErrorIs(t, err, ErrEventNotFound)

	// The ticket-type key is never consulted for a hidden event.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTicketAvailability_Published(t *testing.T) {
	svc, mock := newCachedService(t)

	eventID := uuid.New()
	ev := domain.Event{ID: eventID, Title: "Launch Night", IsPublished: true}
	avail := []domain.TicketTypeAvailability{
		{
			TicketType:        domain.TicketType{ID: uuid.New(), EventID: eventID, Name: "GA"},
			QuantityAvailable: 7,
		},
	}

	mock.ExpectGet(redisrepo.KeyEventSummary(eventID)).SetVal(cacheJSON(t, ev))
	mock.ExpectGet(redisrepo.KeyEventTicketTypes(eventID)).SetVal(cacheJSON(t, avail))

	got, err := svc.ListTicketAvailability(context.Background(), eventID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "GA", got[0].Name)
	assert.Equal(t, 7, got[0].QuantityAvailable)
	require.NoError(t, mock.ExpectationsWereMet())
}
