package credential

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_Deterministic(t *testing.T) {
	orderID := uuid.New()
	itemID := uuid.New()
	userID := uuid.New()

	v1 := Issue(orderID, itemID, userID)
	v2 := Issue(orderID, itemID, userID)

	assert.Equal(t, v1, v2)
}

func TestIssue_Format(t *testing.T) {
	orderID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	itemID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	userID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	v := Issue(orderID, itemID, userID)

	sum := sha1.Sum([]byte(fmt.Sprintf("%s:%s:%s", orderID, itemID, userID)))
	want := Prefix + hex.EncodeToString(sum[:])[:12]

	assert.Equal(t, want, v)
	assert.Len(t, v, len(Prefix)+12)
}

func TestIssue_DistinctPerTuple(t *testing.T) {
	orderID := uuid.New()
	userID := uuid.New()

	a := Issue(orderID, uuid.New(), userID)
	b := Issue(orderID, uuid.New(), userID)

	assert.NotEqual(t, a, b)
}

func TestIssuePayload_EmbedsVerifier(t *testing.T) {
	orderID := uuid.New()
	itemID := uuid.New()
	userID := uuid.New()

	raw, err := IssuePayload(
		orderID, itemID, userID,
		EventInfo{ID: uuid.New(), Title: "Launch Party"},
		TicketInfo{ID: uuid.New(), Name: "VIP"},
		time.Now(),
	)
	require.NoError(t, err)

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, "ticket", p.Type)
	assert.Equal(t, Issue(orderID, itemID, userID), p.Code)
	assert.Equal(t, orderID, p.OrderID)
	assert.Equal(t, 1, p.Version)
}

func TestExtractVerifier(t *testing.T) {
	verifier := Issue(uuid.New(), uuid.New(), uuid.New())

	tests := []struct {
		name      string
		presented string
		want      string
		ok        bool
	}{
		{
			name:      "bare verifier",
			presented: verifier,
			want:      verifier,
			ok:        true,
		},
		{
			name:      "bare verifier with whitespace",
			presented: "  " + verifier + "\n",
			want:      verifier,
			ok:        true,
		},
		{
			name:      "json payload",
			presented: `{"type":"ticket","code":"` + verifier + `"}`,
			want:      verifier,
			ok:        true,
		},
		{
			name:      "empty",
			presented: "",
			ok:        false,
		},
		{
			name:      "foreign prefix",
			presented: "other:abcdef123456",
			ok:        false,
		},
		{
			name:      "json without code",
			presented: `{"type":"ticket"}`,
			ok:        false,
		},
		{
			name:      "json with foreign code",
			presented: `{"code":"other:abcdef123456"}`,
			ok:        false,
		},
		{
			name:      "malformed json",
			presented: `{"code":`,
			ok:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVerifier(tt.presented)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
