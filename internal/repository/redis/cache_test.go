package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

func TestKeys(t *testing.T) {
	eventID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	assert.Equal(t,
		"evlync:v1:event:11111111-1111-1111-1111-111111111111:summary",
		KeyEventSummary(eventID))
	assert.Equal(t,
		"evlync:v1:event:11111111-1111-1111-1111-111111111111:tickets",
		KeyEventTicketTypes(eventID))
}

func TestGetJSON_Hit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectGet("k").SetVal(`{"id":"11111111-1111-1111-1111-111111111111","title":"Launch"}`)

	v, ok, err := GetJSON[eventSummary](context.Background(), c, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Launch", v.Title)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJSON_Miss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectGet("k").RedisNil()

	_, ok, err := GetJSON[eventSummary](context.Background(), c, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_LoadsOnMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	want := eventSummary{ID: id, Title: "Launch"}

	// two misses: the fast path and the re-check inside singleflight
	mock.ExpectGet("k").RedisNil()
	mock.ExpectGet("k").RedisNil()
	mock.ExpectSet("k", `{"id":"11111111-1111-1111-1111-111111111111","title":"Launch"}`, time.Minute).SetVal("OK")

	loads := 0
	v, err := GetOrSetJSON(context.Background(), c, "k", time.Minute,
		func(ctx context.Context) (eventSummary, error) {
			loads++
			return want, nil
		})
	require.NoError(t, err)
	assert.Equal(t, want, v)
	assert.Equal(t, 1, loads)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_LoaderError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectGet("k").RedisNil()
	mock.ExpectGet("k").RedisNil()

	wantErr := errors.New("db down")
	_, err := GetOrSetJSON(context.Background(), c, "k", time.Minute,
		func(ctx context.Context) (eventSummary, error) {
			return eventSummary{}, wantErr
		})
	assert.ErrorIs(t, err, wantErr)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateEvent(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	eventID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	mock.ExpectDel(
		KeyEventSummary(eventID),
		KeyEventTicketTypes(eventID),
	).SetVal(2)

	require.NoError(t, c.InvalidateEvent(context.Background(), eventID))
	require.NoError(t, mock.ExpectationsWereMet())
}
