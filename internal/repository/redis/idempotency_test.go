package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIdemCheckout(t *testing.T) {
	eventID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	key := KeyIdemCheckout(eventID, "client-key-1")

	assert.Equal(t, "evlync:v1:idem:checkout:11111111-1111-1111-1111-111111111111:client-key-1", key)
}

func TestIdempotencyStore_AcquireLock(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(rdb, time.Hour)

	mock.ExpectSetNX("k", "LOCK", time.Minute).SetVal(true)

	ok, err := store.AcquireLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_AcquireLock_Held(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(rdb, time.Hour)

	mock.ExpectSetNX("k", "LOCK", time.Minute).SetVal(false)

	ok, err := store.AcquireLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_SaveAndGetResult(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(rdb, time.Hour)

	mock.ExpectSet("k", `RES:{"order_id":"x"}`, time.Hour).SetVal("OK")
	mock.ExpectGet("k").SetVal(`RES:{"order_id":"x"}`)

	require.NoError(t, store.SaveResult(context.Background(), "k", `{"order_id":"x"}`))

	payload, ok, err := store.GetResult(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"order_id":"x"}`, payload)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_GetResult_LockIsNotAResult(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(rdb, time.Hour)

	mock.ExpectGet("k").SetVal("LOCK")

	_, ok, err := store.GetResult(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_GetResult_Missing(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(rdb, time.Hour)

	mock.ExpectGet("k").RedisNil()

	_, ok, err := store.GetResult(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_IsLocked(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(rdb, time.Hour)

	mock.ExpectGet("k").SetVal("LOCK")

	locked, err := store.IsLocked(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_Release(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(rdb, time.Hour)

	mock.ExpectDel("k").SetVal(1)

	require.NoError(t, store.Release(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}
