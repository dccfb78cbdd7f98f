package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"ccranking/internal/components/assert"
	"ccranking/internal/components/telemetry"
	"ccranking/internal/history/db"
	"ccranking/internal/ranking"
	"ccranking/internal/sink"
	"ccranking/pkg/textutil"

	"github.com/antzucaro/matchr"
)

const (
	report_db_query   = "db.query"
	report_store_push = "store.push"
)

// MatchThreshold is the minimum Jaro-Winkler similarity for FindPlayer to consider a name a match.
const MatchThreshold = 0.85

var ErrNoRuns = errors.New("no runs recorded yet")

// Store keeps one batch per calendar day, pushing a second batch on the same day
// replaces the first one.
type Store struct {
	db  *sql.DB
	qry *db.Queries
	tel telemetry.API
}

func NewStore(database *sql.DB, tel telemetry.API) Store {
	assert.NotNil(database)
	assert.NotNil(tel)
	return Store{
		db:  database,
		qry: db.New(database),
		tel: telemetry.NewScopedAPI("history", tel),
	}
}

func (s Store) Name() string {
	return "history"
}

// Write implements sink.Sink.
func (s Store) Write(ctx context.Context, batch ranking.Batch, run sink.RunInfo) (string, error) {
	err := s.Push(ctx, batch, run)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("run %s (%s)", run.ID, run.Time.Format(time.DateOnly)), nil
}

func (s Store) Push(ctx context.Context, batch ranking.Batch, run sink.RunInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "BeginTx")
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	runDate := run.Time.Format(time.DateOnly)
	err = txqry.DeleteRecordsOnDate(ctx, runDate)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteRecordsOnDate", runDate)
		return err
	}
	err = txqry.DeleteRunOnDate(ctx, runDate)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteRunOnDate", runDate)
		return err
	}

	err = txqry.CreateRun(ctx, db.CreateRunParams{
		ID:          run.ID,
		RunDate:     runDate,
		RunTime:     run.Time.Unix(),
		Layout:      batch.Layout.String(),
		RecordCount: int64(batch.Len()),
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "CreateRun", run.ID)
		return err
	}

	for i, r := range batch.Records {
		err = txqry.CreateRecord(ctx, db.CreateRecordParams{
			RunID:       run.ID,
			Position:    int64(i),
			Rank:        r.Rank,
			PlayerName:  r.PlayerName,
			World:       r.World,
			PlayerGroup: r.Group,
			Score:       r.Score,
			ScoreDelta:  r.ScoreDelta,
			Wins:        r.Wins,
			WinsDelta:   r.WinsDelta,
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "CreateRecord", run.ID, i)
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "Commit")
		return err
	}
	s.tel.ReportDebug(report_store_push, run.ID, runDate, batch.Len())
	return nil
}

type Run struct {
	ID          string
	Date        string
	Time        time.Time
	Layout      ranking.Layout
	RecordCount int
}

func runFromRow(row db.RankingRun) Run {
	layout, err := ranking.ParseLayout(row.Layout)
	if err != nil {
		layout = ranking.LayoutWorldAndGroup
	}
	return Run{
		ID:          row.ID,
		Date:        row.RunDate,
		Time:        time.Unix(row.RunTime, 0),
		Layout:      layout,
		RecordCount: int(row.RecordCount),
	}
}

// Runs returns the latest runs, newest first.
func (s Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.qry.ListRuns(ctx, int64(limit))
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "ListRuns")
		return nil, err
	}
	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = runFromRow(r)
	}
	return runs, nil
}

func (s Store) LatestRun(ctx context.Context) (Run, error) {
	row, err := s.qry.GetLatestRun(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetLatestRun")
		return Run{}, err
	}
	return runFromRow(row), nil
}

// Batch returns the batch stored for the given run, in its original order.
func (s Store) Batch(ctx context.Context, run Run) (ranking.Batch, error) {
	rows, err := s.qry.GetRunRecords(ctx, run.ID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetRunRecords", run.ID)
		return ranking.Batch{}, err
	}
	batch := ranking.Batch{
		Layout:  run.Layout,
		Records: make([]ranking.Record, len(rows)),
	}
	for i, r := range rows {
		batch.Records[i] = ranking.Record{
			Rank:       r.Rank,
			PlayerName: r.PlayerName,
			World:      r.World,
			Group:      r.PlayerGroup,
			Score:      r.Score,
			ScoreDelta: r.ScoreDelta,
			Wins:       r.Wins,
			WinsDelta:  r.WinsDelta,
		}
	}
	return batch, nil
}

type Match struct {
	Record     ranking.Record
	Similarity float64
}

// FindPlayer looks `name` up in the latest run. Names are compared ignoring case and
// whitespace, matches are ordered by similarity then by their position in the run.
func (s Store) FindPlayer(ctx context.Context, name string) (Run, []Match, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return Run{}, nil, err
	}
	batch, err := s.Batch(ctx, run)
	if err != nil {
		return run, nil, err
	}

	target := textutil.NormalizeName(name)
	var matches []Match
	for _, r := range batch.Records {
		similarity := matchr.JaroWinkler(target, textutil.NormalizeName(r.PlayerName), false)
		if similarity < MatchThreshold {
			continue
		}
		matches = append(matches, Match{Record: r, Similarity: similarity})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return run, matches, nil
}
