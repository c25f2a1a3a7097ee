package incident

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func record(strikes int) Record {
	return Record{
		ID:        uuid.NewString(),
		Watchdog:  "soft_wdt",
		At:        time.Date(2026, 3, 1, 12, 0, strikes, 0, time.UTC),
		Strikes:   strikes,
		Threshold: 2,
		Stalled:   10200 * time.Millisecond,
		Recovery:  "reset",
	}
}

func TestAppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.cbor")

	log, err := Open(path)
	require.NoError(t, err)
	for i := range 3 {
		require.NoError(t, log.Append(record(i+2)))
	}
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())
	require.ErrorIs(t, log.Append(record(9)), os.ErrClosed)

	// Reopening appends after the existing records.
	log, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(record(7)))
	require.NoError(t, log.Close())

	all, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, 2, all[0].Strikes)
	require.Equal(t, 10200*time.Millisecond, all[0].Stalled)
	require.True(t, all[0].At.Equal(record(2).At))

	last, ok, err := Last(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, last.Strikes)

	recent, err := Recent(path, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, 4, recent[0].Strikes)
}

func TestMissingFileHasNoRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.cbor")

	all, err := ReadAll(path)
	require.NoError(t, err)
	require.Empty(t, all)

	_, ok, err := Last(path)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTruncatedTailIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.cbor")

	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(record(2)))
	require.NoError(t, log.Append(record(3)))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-5], 0o644))

	all, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
