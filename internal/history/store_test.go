package history

import (
	"context"
	"testing"
	"time"

	"ccranking/internal/components/telemetry"
	"ccranking/internal/history/db"
	"ccranking/internal/ranking"
	"ccranking/internal/sink"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) Store {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	database, err := db.Open(ctx, db.Config{File: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return NewStore(database, &telemetry.Recorder{})
}

func TestStore(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := store.LatestRun(ctx)
	require.ErrorIs(t, err, ErrNoRuns)

	day := time.Date(2024, 3, 9, 9, 0, 0, 0, time.Local)
	first := ranking.Batch{
		Layout: ranking.LayoutWorldAndGroup,
		Records: []ranking.Record{
			{Rank: "1", PlayerName: "Aaa Bbb", World: "Mateus", Group: "Crystal", Score: "1,900", ScoreDelta: "35", Wins: "80", WinsDelta: "4"},
			{Rank: "2", PlayerName: "Ccc Ddd", World: "Gilgamesh", Group: "Aether", Score: "1,850", Wins: "77"},
		},
	}
	location, err := store.Write(ctx, first, sink.RunInfo{ID: "first", Time: day})
	require.NoError(t, err)
	require.Contains(t, location, "first")

	second := ranking.Batch{
		Layout: ranking.LayoutWorldOnly,
		Records: []ranking.Record{
			{Rank: "1", PlayerName: "Eee Fff", World: "Zalera", Score: "2,000", Wins: "90"},
		},
	}
	// the same day is replaced
	require.NoError(t, store.Push(ctx, second, sink.RunInfo{ID: "second", Time: day.Add(3 * time.Hour)}))

	runs, err := store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "second", runs[0].ID)
	require.Equal(t, "2024-03-09", runs[0].Date)
	require.Equal(t, ranking.LayoutWorldOnly, runs[0].Layout)
	require.Equal(t, 1, runs[0].RecordCount)

	// a later day is kept alongside
	require.NoError(t, store.Push(ctx, first, sink.RunInfo{ID: "third", Time: day.AddDate(0, 0, 1)}))
	runs, err = store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "third", runs[0].ID)
	require.Equal(t, "second", runs[1].ID)

	runs, err = store.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	batch, err := store.Batch(ctx, latest)
	require.NoError(t, err)
	if diff := cmp.Diff(first, batch); diff != "" {
		t.Fatal(diff)
	}
}

func TestFindPlayer(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, _, err := store.FindPlayer(ctx, "anyone")
	require.ErrorIs(t, err, ErrNoRuns)

	batch := ranking.Batch{
		Layout: ranking.LayoutWorldAndGroup,
		Records: []ranking.Record{
			{Rank: "1", PlayerName: "Aaa Bbb", World: "Mateus", Group: "Crystal"},
			{Rank: "2", PlayerName: "John Smith", World: "Mateus", Group: "Crystal"},
			{Rank: "3", PlayerName: "Jon Smith", World: "Zalera", Group: "Crystal"},
		},
	}
	require.NoError(t, store.Push(ctx, batch, sink.RunInfo{ID: "run", Time: time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC)}))

	run, matches, err := store.FindPlayer(ctx, "john  SMITH")
	require.NoError(t, err)
	require.Equal(t, "run", run.ID)
	require.NotEmpty(t, matches)
	require.Equal(t, "John Smith", matches[0].Record.PlayerName)
	require.InDelta(t, 1, matches[0].Similarity, 0.0001)
	for _, m := range matches {
		require.GreaterOrEqual(t, m.Similarity, MatchThreshold)
		require.NotEqual(t, "Aaa Bbb", m.Record.PlayerName)
	}

	_, matches, err = store.FindPlayer(ctx, "zzzzzz")
	require.NoError(t, err)
	require.Empty(t, matches)
}
