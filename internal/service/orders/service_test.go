package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLines_Empty(t *testing.T) {
	_, err := NormalizeLines(nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = NormalizeLines([]Line{})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestNormalizeLines_InvalidQuantity(t *testing.T) {
	_, err := NormalizeLines([]Line{{TicketTypeID: uuid.New(), Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NormalizeLines([]Line{{TicketTypeID: uuid.New(), Quantity: -3}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNormalizeLines_NilTicketType(t *testing.T) {
	_, err := NormalizeLines([]Line{{TicketTypeID: uuid.Nil, Quantity: 1}})
	assert.ErrorIs(t, err, ErrTicketTypeNotFound)
}

func TestNormalizeLines_SortsByTicketTypeID(t *testing.T) {
	a := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	b := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")
	c := uuid.MustParse("cccccccc-0000-0000-0000-000000000000")

	out, err := NormalizeLines([]Line{
		{TicketTypeID: c, Quantity: 1},
		{TicketTypeID: a, Quantity: 2},
		{TicketTypeID: b, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, a, out[0].TicketTypeID)
	assert.Equal(t, b, out[1].TicketTypeID)
	assert.Equal(t, c, out[2].TicketTypeID)

	// quantities travel with their line
	assert.Equal(t, 2, out[0].Quantity)
	assert.Equal(t, 3, out[1].Quantity)
	assert.Equal(t, 1, out[2].Quantity)
}

func TestNormalizeLines_DoesNotMutateInput(t *testing.T) {
	a := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	c := uuid.MustParse("cccccccc-0000-0000-0000-000000000000")

	in := []Line{
		{TicketTypeID: c, Quantity: 1},
		{TicketTypeID: a, Quantity: 2},
	}

	_, err := NormalizeLines(in)
	require.NoError(t, err)

	assert.Equal(t, c, in[0].TicketTypeID)
	assert.Equal(t, a, in[1].TicketTypeID)
}
