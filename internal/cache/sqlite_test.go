package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectorvault/appraise/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testValuation() *model.ValuationResult {
	return &model.ValuationResult{
		ValueLow:         40.0,
		ValueMedian:      52.5,
		ValueHigh:        70.0,
		ObservationCount: 25,
		WindowDays:       90,
		Sources:          []string{"cardledger", "scryvault"},
		Confidence:       0.71,
		Volatility:       0.18,
		FetchedAt:        time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLite_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	want := testValuation()
	require.NoError(t, st.Set(ctx, "user1|charizard|base set||near mint|90", want, time.Hour))

	got, found, err := st.Get(ctx, "user1|charizard|base set||near mint|90")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestSQLite_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, found, err := st.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestSQLite_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Already-expired TTL: the entry exists but must read as a miss.
	require.NoError(t, st.Set(ctx, "stale-key", testValuation(), -time.Hour))

	_, found, err := st.Get(ctx, "stale-key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLite_SetOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testValuation()
	require.NoError(t, st.Set(ctx, "k", first, time.Hour))

	second := testValuation()
	second.ValueMedian = 99.0
	require.NoError(t, st.Set(ctx, "k", second, time.Hour))

	got, found, err := st.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 99.0, got.ValueMedian)
}

func TestSQLite_DeleteExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "fresh", testValuation(), time.Hour))
	require.NoError(t, st.Set(ctx, "stale1", testValuation(), -time.Hour))
	require.NoError(t, st.Set(ctx, "stale2", testValuation(), -time.Minute))

	n, err := st.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, found, err := st.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, found)
}
