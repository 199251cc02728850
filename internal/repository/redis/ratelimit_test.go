package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The script arguments carry the current timestamp and a random member,
// so expectations match on command and key only.
func looseMatch(expected, actual []interface{}) error {
	return nil
}

// redismock requires the expected and actual argument counts to match
// before the custom matcher runs, so expectations pass placeholder
// values for the four script arguments that looseMatch ignores.
var placeholderArgs = []interface{}{0, 0, 0, ""}

func TestSlidingWindowLimiter_Allow(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	limiter := NewSlidingWindowLimiter(rdb, "evlync:v1:rl", 10, time.Minute)
	sha := redis.NewScript(luaSlidingWindow).Hash()

	mock.CustomMatch(looseMatch).
		ExpectEvalSha(sha, []string{"evlync:v1:rl:checkout:u1"}, placeholderArgs...).
		SetVal([]interface{}{int64(1), int64(3), int64(0)})

	allowed, current, retryAfter, err := limiter.Allow(context.Background(), "checkout:u1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(3), current)
	assert.Equal(t, time.Duration(0), retryAfter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlidingWindowLimiter_Denied(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	limiter := NewSlidingWindowLimiter(rdb, "evlync:v1:rl", 10, time.Minute)
	sha := redis.NewScript(luaSlidingWindow).Hash()

	mock.CustomMatch(looseMatch).
		ExpectEvalSha(sha, []string{"evlync:v1:rl:checkout:u1"}, placeholderArgs...).
		SetVal([]interface{}{int64(0), int64(11), int64(450)})

	allowed, current, retryAfter, err := limiter.Allow(context.Background(), "checkout:u1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(11), current)
	assert.Equal(t, 450*time.Millisecond, retryAfter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSlidingWindowLimiter_ScriptError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	limiter := NewSlidingWindowLimiter(rdb, "evlync:v1:rl", 10, time.Minute)
	sha := redis.NewScript(luaSlidingWindow).Hash()

	mock.CustomMatch(looseMatch).
		ExpectEvalSha(sha, []string{"evlync:v1:rl:checkout:u1"}, placeholderArgs...).
		SetErr(assert.AnError)

	allowed, _, _, err := limiter.Allow(context.Background(), "checkout:u1")
	require.Error(t, err)
	assert.False(t, allowed)
}
