package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/pagination"
)

// DeadLetterPage is one page of dead letters, newest first.
type DeadLetterPage = pagination.PageResult[*domain.DeadLetter]

// RecordDeadLetter stores a failed capture. A repeated failure for the same path
// increments its attempt counter.
func (s *Store) RecordDeadLetter(ctx context.Context, path, stage string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letters (path, stage, error, attempts, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   stage = excluded.stage, error = excluded.error,
		   attempts = dead_letters.attempts + 1, updated_at = excluded.updated_at`,
		path, stage, msg, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns dead letters ordered by id descending.
func (s *Store) ListDeadLetters(ctx context.Context, cursor *pagination.Cursor, limit int) (*DeadLetterPage, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, path, stage, error, attempts, created_at, updated_at FROM dead_letters`
	args := []any{}
	if cursor != nil {
		query += ` WHERE id < ?`
		args = append(args, cursor.LastID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var items []*domain.DeadLetter
	for rows.Next() {
		var dl domain.DeadLetter
		var created, updated int64
		if err := rows.Scan(&dl.ID, &dl.Path, &dl.Stage, &dl.Error, &dl.Attempts, &created, &updated); err != nil {
			return nil, err
		}
		dl.CreatedAt = time.Unix(0, created)
		dl.UpdatedAt = time.Unix(0, updated)
		items = append(items, &dl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pagination.NewPage(items, limit, func(dl *domain.DeadLetter) (int64, time.Time) {
		return dl.ID, dl.CreatedAt
	}), nil
}
