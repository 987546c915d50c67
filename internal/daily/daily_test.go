package daily

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/svdguess/assets"
	"github.com/robalobadob/svdguess/internal/database"
)

func TestDateKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	ts := time.Date(2026, 5, 2, 3, 0, 0, 0, loc) // 2026-05-01 18:00 UTC
	assert.Equal(t, "2026-05-01", DateKey(ts))
}

func TestIndexDeterministic(t *testing.T) {
	day := time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC)
	later := day.Add(5 * time.Hour)

	a := Index(day, "salt", 151)
	assert.Equal(t, a, Index(later, "salt", 151), "same day, same index")
	assert.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, 151)
	assert.Equal(t, 0, Index(day, "salt", 0))

	seen := map[int]bool{}
	for i := 0; i < 30; i++ {
		seen[Index(day.AddDate(0, 0, i), "salt", 151)] = true
	}
	assert.Greater(t, len(seen), 10, "indexes should spread across days")
}

func TestTarget(t *testing.T) {
	names := []string{"Circle", "Ring", "Star"}
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, names[Index(day, "x", 3)], Target(day, "x", names))
	assert.Equal(t, "", Target(day, "x", nil))
}

func TestStoreResultsAndLeaderboard(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(db, assets.Migrations()))

	st := NewStore(db)
	played, err := st.AlreadyPlayed(ctx, "p1", "2026-01-01")
	require.NoError(t, err)
	assert.False(t, played)

	require.NoError(t, st.InsertResult(ctx, Result{PlayerID: "p1", Date: "2026-01-01", Target: "Star", Rank: 3, Score: 8, Guesses: 3, ElapsedMs: 9000}))
	require.NoError(t, st.InsertResult(ctx, Result{PlayerID: "p2", Date: "2026-01-01", Target: "Star", Rank: 3, Score: 8, Guesses: 3, ElapsedMs: 4000}))
	require.NoError(t, st.InsertResult(ctx, Result{PlayerID: "p3", Date: "2026-01-01", Target: "Star", Rank: 1, Score: 10, Guesses: 1, ElapsedMs: 20000}))
	// duplicate for p1 ignored
	require.NoError(t, st.InsertResult(ctx, Result{PlayerID: "p1", Date: "2026-01-01", Target: "Star", Rank: 1, Score: 10, Guesses: 1, ElapsedMs: 1}))
	require.NoError(t, st.InsertResult(ctx, Result{PlayerID: "p1", Date: "2026-01-02", Target: "Ring", Rank: 2, Score: 9, Guesses: 2, ElapsedMs: 1}))

	played, err = st.AlreadyPlayed(ctx, "p1", "2026-01-01")
	require.NoError(t, err)
	assert.True(t, played)

	lb, err := st.Leaderboard(ctx, "2026-01-01", 10)
	require.NoError(t, err)
	require.Len(t, lb, 3)
	assert.Equal(t, "p3", lb[0].PlayerID)
	assert.Equal(t, "p2", lb[1].PlayerID)
	assert.Equal(t, "p1", lb[2].PlayerID)
	assert.Equal(t, 9000, lb[2].ElapsedMs)

	lb, err = st.Leaderboard(ctx, "2026-01-01", 1)
	require.NoError(t, err)
	assert.Len(t, lb, 1)
}
