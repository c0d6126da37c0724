package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
)

// InsertCapture stores one frame as an unprocessed record. When key is non-nil the
// watcher dedup key is written in the same transaction, so a file is either fully
// recorded or not seen at all.
func (s *Store) InsertCapture(ctx context.Context, frame *domain.CaptureFrame, key *domain.FileKey) (int64, error) {
	if frame == nil {
		return 0, domain.ErrMissingRequiredField
	}
	if !frame.Source.IsValid() {
		return 0, domain.ErrInvalidSource
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		switch frame.Source {
		case domain.SourceImage:
			res, err = tx.ExecContext(ctx,
				`INSERT INTO images (image, metadata, date, time, processed) VALUES (?, ?, ?, ?, 0)`,
				frame.Image, frame.Text, frame.Date(), frame.Time(),
			)
		case domain.SourceTranscription:
			res, err = tx.ExecContext(ctx,
				`INSERT INTO transcriptions (title, transcription, date, time, metadata, processed) VALUES (?, ?, ?, ?, ?, 0)`,
				frame.Title, frame.Text, frame.Date(), frame.Time(), frame.Metadata,
			)
		}
		if err != nil {
			return fmt.Errorf("failed to insert %s record: %w", frame.Source, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}

		if key == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ingested_files (path, size, mod_time, source, record_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(path) DO UPDATE SET
			   size = excluded.size, mod_time = excluded.mod_time,
			   source = excluded.source, record_id = excluded.record_id`,
			key.Path, key.Size, key.ModTime.UnixNano(), string(frame.Source), id, time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to record ingested file: %w", err)
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM dead_letters WHERE path = ?`, key.Path)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// HasFile reports whether a file with the same path, size and modification time
// was already recorded. A rewritten file is treated as new.
func (s *Store) HasFile(ctx context.Context, key domain.FileKey) (bool, error) {
	var size, modTime int64
	err := s.db.QueryRowContext(ctx,
		`SELECT size, mod_time FROM ingested_files WHERE path = ?`, key.Path,
	).Scan(&size, &modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return size == key.Size && modTime == key.ModTime.UnixNano(), nil
}

// FetchUnprocessed returns unprocessed image records ordered by id, followed by
// unprocessed transcription records ordered by id.
func (s *Store) FetchUnprocessed(ctx context.Context) ([]domain.LedgerRecord, error) {
	images, err := s.fetch(ctx, domain.SourceImage,
		`SELECT id, metadata, date, time FROM images WHERE processed = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	transcriptions, err := s.fetch(ctx, domain.SourceTranscription,
		`SELECT id, transcription, date, time FROM transcriptions WHERE processed = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return append(images, transcriptions...), nil
}

func (s *Store) fetch(ctx context.Context, source domain.Source, query string) ([]domain.LedgerRecord, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unprocessed %s records: %w", source, err)
	}
	defer rows.Close()

	var records []domain.LedgerRecord
	for rows.Next() {
		rec := domain.LedgerRecord{Source: source}
		var text, date, tm sql.NullString
		if err := rows.Scan(&rec.ID, &text, &date, &tm); err != nil {
			return nil, err
		}
		rec.Text = text.String
		rec.Date = date.String
		rec.Time = tm.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkProcessed flips the processed flag for exactly the given records in one
// transaction. Unknown refs are ignored.
func (s *Store) MarkProcessed(ctx context.Context, refs []domain.RecordRef) error {
	if len(refs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		imgStmt, err := tx.PrepareContext(ctx, `UPDATE images SET processed = 1 WHERE id = ?`)
		if err != nil {
			return err
		}
		defer imgStmt.Close()
		trStmt, err := tx.PrepareContext(ctx, `UPDATE transcriptions SET processed = 1 WHERE id = ?`)
		if err != nil {
			return err
		}
		defer trStmt.Close()

		for _, ref := range refs {
			var stmt *sql.Stmt
			switch ref.Source {
			case domain.SourceImage:
				stmt = imgStmt
			case domain.SourceTranscription:
				stmt = trStmt
			default:
				return fmt.Errorf("mark %s: %w", ref, domain.ErrInvalidSource)
			}
			if _, err := stmt.ExecContext(ctx, ref.ID); err != nil {
				return fmt.Errorf("failed to mark %s processed: %w", ref, err)
			}
		}
		return nil
	})
}

// SweepRetention deletes processed records dated before now minus days. Unprocessed
// records are never deleted regardless of age. It returns the number of rows removed.
func (s *Store) SweepRetention(ctx context.Context, now time.Time, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive: %w", domain.ErrMissingRequiredField)
	}
	horizon := now.AddDate(0, 0, -days).Format(domain.DateLayout)

	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"images", "transcriptions"} {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE processed = 1 AND date < ?`, horizon)
			if err != nil {
				return fmt.Errorf("failed to sweep %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Stats holds record counts for health reporting.
type Stats struct {
	Images         int64 `json:"images"`
	Transcriptions int64 `json:"transcriptions"`
	Unprocessed    int64 `json:"unprocessed"`
	DeadLetters    int64 `json:"dead_letters"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM images),
		  (SELECT COUNT(*) FROM transcriptions),
		  (SELECT COUNT(*) FROM images WHERE processed = 0) +
		  (SELECT COUNT(*) FROM transcriptions WHERE processed = 0),
		  (SELECT COUNT(*) FROM dead_letters)`,
	).Scan(&st.Images, &st.Transcriptions, &st.Unprocessed, &st.DeadLetters)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger stats: %w", err)
	}
	return &st, nil
}
