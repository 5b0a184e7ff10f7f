package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `card_id, board_id, event_id, calendar_id, current_status,
	title, description, location, start_time, end_time, created_at`

// recordRepo implements RecordRepository on PostgreSQL.
type recordRepo struct {
	pool *pgxpool.Pool
}

func (r *recordRepo) Add(ctx context.Context, rec SyncRecord) (*SyncRecord, error) {
	defer observeDB(ctx, "db.records.add")()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO sync_records
			(card_id, board_id, event_id, calendar_id, current_status,
			 title, description, location, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		rec.CardID, rec.BoardID, rec.EventID, rec.CalendarID, rec.CurrentStatus,
		rec.Title, rec.Description, rec.Location, rec.StartTime, rec.EndTime,
	)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("card %s: %w", rec.CardID, ErrDuplicate)
		}
		return nil, fmt.Errorf("insert sync record: %w", err)
	}
	return &rec, nil
}

func (r *recordRepo) GetByCardID(ctx context.Context, cardID string) (*SyncRecord, error) {
	defer observeDB(ctx, "db.records.get")()

	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM sync_records WHERE card_id = $1`, cardID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get sync record: %w", err)
	}
	return rec, nil
}

func (r *recordRepo) Update(ctx context.Context, rec SyncRecord) error {
	defer observeDB(ctx, "db.records.update")()

	tag, err := r.pool.Exec(ctx, `
		UPDATE sync_records SET
			board_id = $2, calendar_id = $3, current_status = $4,
			title = $5, description = $6, location = $7,
			start_time = $8, end_time = $9
		WHERE card_id = $1`,
		rec.CardID, rec.BoardID, rec.CalendarID, rec.CurrentStatus,
		rec.Title, rec.Description, rec.Location, rec.StartTime, rec.EndTime,
	)
	if err != nil {
		return fmt.Errorf("update sync record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepo) SetEventID(ctx context.Context, cardID, eventID string) error {
	defer observeDB(ctx, "db.records.set_event_id")()

	tag, err := r.pool.Exec(ctx,
		`UPDATE sync_records SET event_id = $2 WHERE card_id = $1`, cardID, eventID)
	if err != nil {
		return fmt.Errorf("set event id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepo) SetStatus(ctx context.Context, cardID, status string) error {
	defer observeDB(ctx, "db.records.set_status")()

	tag, err := r.pool.Exec(ctx,
		`UPDATE sync_records SET current_status = $2 WHERE card_id = $1`, cardID, status)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepo) Delete(ctx context.Context, cardID string) error {
	defer observeDB(ctx, "db.records.delete")()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM sync_records WHERE card_id = $1`, cardID)
	if err != nil {
		return fmt.Errorf("delete sync record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *recordRepo) ListAll(ctx context.Context) ([]SyncRecord, error) {
	defer observeDB(ctx, "db.records.list_all")()

	rows, err := r.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM sync_records ORDER BY created_at, card_id`)
	if err != nil {
		return nil, fmt.Errorf("list sync records: %w", err)
	}
	defer rows.Close()

	var records []SyncRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sync records: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*SyncRecord, error) {
	var rec SyncRecord
	err := row.Scan(
		&rec.CardID, &rec.BoardID, &rec.EventID, &rec.CalendarID, &rec.CurrentStatus,
		&rec.Title, &rec.Description, &rec.Location,
		&rec.StartTime, &rec.EndTime, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
