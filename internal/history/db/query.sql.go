package db

import (
	"context"
)

type RankingRun struct {
	ID          string
	RunDate     string
	RunTime     int64
	Layout      string
	RecordCount int64
}

type RankingRecord struct {
	RunID       string
	Position    int64
	Rank        string
	PlayerName  string
	World       string
	PlayerGroup string
	Score       string
	ScoreDelta  string
	Wins        string
	WinsDelta   string
}

const deleteRecordsOnDate = `-- name: DeleteRecordsOnDate :exec
DELETE FROM ranking_record
WHERE run_id IN (SELECT id FROM ranking_run WHERE run_date = ?)
`

func (q *Queries) DeleteRecordsOnDate(ctx context.Context, runDate string) error {
	_, err := q.db.ExecContext(ctx, deleteRecordsOnDate, runDate)
	return err
}

const deleteRunOnDate = `-- name: DeleteRunOnDate :exec
DELETE FROM ranking_run WHERE run_date = ?
`

func (q *Queries) DeleteRunOnDate(ctx context.Context, runDate string) error {
	_, err := q.db.ExecContext(ctx, deleteRunOnDate, runDate)
	return err
}

const createRun = `-- name: CreateRun :exec
INSERT INTO ranking_run(id, run_date, run_time, layout, record_count)
VALUES (?, ?, ?, ?, ?)
`

type CreateRunParams struct {
	ID          string
	RunDate     string
	RunTime     int64
	Layout      string
	RecordCount int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.RunDate,
		arg.RunTime,
		arg.Layout,
		arg.RecordCount,
	)
	return err
}

const createRecord = `-- name: CreateRecord :exec
INSERT INTO ranking_record(
    run_id, position, rank, player_name, world, player_group,
    score, score_delta, wins, wins_delta
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateRecordParams struct {
	RunID       string
	Position    int64
	Rank        string
	PlayerName  string
	World       string
	PlayerGroup string
	Score       string
	ScoreDelta  string
	Wins        string
	WinsDelta   string
}

func (q *Queries) CreateRecord(ctx context.Context, arg CreateRecordParams) error {
	_, err := q.db.ExecContext(ctx, createRecord,
		arg.RunID,
		arg.Position,
		arg.Rank,
		arg.PlayerName,
		arg.World,
		arg.PlayerGroup,
		arg.Score,
		arg.ScoreDelta,
		arg.Wins,
		arg.WinsDelta,
	)
	return err
}

const listRuns = `-- name: ListRuns :many
SELECT id, run_date, run_time, layout, record_count FROM ranking_run
ORDER BY run_time DESC
LIMIT ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]RankingRun, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RankingRun
	for rows.Next() {
		var i RankingRun
		if err := rows.Scan(
			&i.ID,
			&i.RunDate,
			&i.RunTime,
			&i.Layout,
			&i.RecordCount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLatestRun = `-- name: GetLatestRun :one
SELECT id, run_date, run_time, layout, record_count FROM ranking_run
ORDER BY run_time DESC
LIMIT 1
`

func (q *Queries) GetLatestRun(ctx context.Context) (RankingRun, error) {
	row := q.db.QueryRowContext(ctx, getLatestRun)
	var i RankingRun
	err := row.Scan(
		&i.ID,
		&i.RunDate,
		&i.RunTime,
		&i.Layout,
		&i.RecordCount,
	)
	return i, err
}

const getRunRecords = `-- name: GetRunRecords :many
SELECT run_id, position, rank, player_name, world, player_group,
    score, score_delta, wins, wins_delta
FROM ranking_record
WHERE run_id = ?
ORDER BY position
`

func (q *Queries) GetRunRecords(ctx context.Context, runID string) ([]RankingRecord, error) {
	rows, err := q.db.QueryContext(ctx, getRunRecords, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RankingRecord
	for rows.Next() {
		var i RankingRecord
		if err := rows.Scan(
			&i.RunID,
			&i.Position,
			&i.Rank,
			&i.PlayerName,
			&i.World,
			&i.PlayerGroup,
			&i.Score,
			&i.ScoreDelta,
			&i.Wins,
			&i.WinsDelta,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
