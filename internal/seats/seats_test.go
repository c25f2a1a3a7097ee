package seats

import (
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"0": Available, "available": Available,
		"1": Occupied, " Occupied ": Occupied,
		"2": Claimed, "CLAIMED": Claimed,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "3", "-1", "busy"} {
		_, err := ParseStatus(in)
		require.Error(t, err, in)
	}
}

func TestStatusFromCode(t *testing.T) {
	require.Equal(t, Occupied, StatusFromCode("1"))
	require.Equal(t, Claimed, StatusFromCode("2"))
	require.Equal(t, Available, StatusFromCode("3"))
	require.Equal(t, Available, StatusFromCode("4"))
	require.Equal(t, Available, StatusFromCode("garbage"))
	require.Equal(t, Claimed, StatusFromCode("claimed"))
}

func TestTableCapacity(t *testing.T) {
	table := NewTable(2, slogt.New(t))

	require.NoError(t, table.Update(1, Occupied))
	require.NoError(t, table.Update(2, Claimed))
	require.ErrorIs(t, table.Update(3, Occupied), ErrTableFull)
	require.ErrorIs(t, table.Update(0, Occupied), ErrInvalidSeat)
	require.Error(t, table.Update(1, Status(7)))

	// Existing seats can still change.
	require.NoError(t, table.Update(1, Available))

	snap := table.Snapshot()
	require.Len(t, snap, 2)
	require.EqualValues(t, 1, snap[0].ID)
	require.Equal(t, Available, snap[0].Status)
	require.EqualValues(t, 2, snap[1].ID)
	require.Equal(t, Claimed, snap[1].Status)
}

func TestTableGetUnknown(t *testing.T) {
	table := NewTable(0, nil)
	require.Equal(t, DefaultCapacity, table.Capacity())

	seat, ok := table.Get(9)
	require.False(t, ok)
	require.Equal(t, Available, seat.Status)
}

func TestSubscribersSeeChangesOnly(t *testing.T) {
	table := NewTable(2, slogt.New(t))

	var seen []Seat
	table.Subscribe(func(s Seat) { seen = append(seen, s) })

	require.NoError(t, table.Update(1, Occupied))
	require.NoError(t, table.Update(1, Occupied))
	require.NoError(t, table.Update(1, Claimed))

	require.Len(t, seen, 2)
	require.Equal(t, Claimed, seen[1].Status)
}

func TestSilentMode(t *testing.T) {
	table := NewTable(1, slogt.New(t))
	require.False(t, table.Silent())

	table.SetSilent(true)
	require.True(t, table.Silent())
	require.ErrorIs(t, table.Update(0, Occupied), ErrInvalidSeat)
}

func TestStatusText(t *testing.T) {
	text, err := Claimed.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "claimed", string(text))

	var s Status
	require.NoError(t, s.UnmarshalText([]byte("occupied")))
	require.Equal(t, Occupied, s)

	_, err = Status(9).MarshalText()
	require.Error(t, err)
}
