package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/stepup/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewProducesUniqueSortedIDs(t *testing.T) {
	t.Parallel()

	seen := make(map[idx.ID]bool)
	var prev idx.ID
	for range 100 {
		id := idx.New()
		require.False(t, seen[id])
		require.False(t, id.IsZero())
		require.GreaterOrEqual(t, id.String(), prev.String())
		seen[id] = true
		prev = id
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	id := idx.NewAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = idx.Parse("")
	require.ErrorIs(t, err, idx.ErrInvalid)

	_, err = idx.Parse("not-a-ulid")
	require.ErrorIs(t, err, idx.ErrInvalid)
}
