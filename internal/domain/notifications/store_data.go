package notifications

import (
	"context"
	"time"
)

func (s *Store) CreateFlash(ctx context.Context, userID string, kind Kind, message string, expiresAt time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO flash_messages (user_id, type, message, expires_at)
    VALUES ($1, $2, $3, $4)
  `, userID, string(kind), message, expiresAt)
	return err
}

// DrainFlashes marks the user's live messages consumed and returns them
// oldest first.
func (s *Store) DrainFlashes(ctx context.Context, userID string, now time.Time) ([]Flash, error) {
	rows, err := s.DB.Query(ctx, `
    WITH drained AS (
      UPDATE flash_messages
      SET consumed_at = $2
      WHERE user_id::text = $1 AND consumed_at IS NULL AND expires_at > $2
      RETURNING id::text, type, message, created_at
    )
    SELECT id, type, message, created_at FROM drained ORDER BY created_at, id
  `, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Flash{}
	for rows.Next() {
		var f Flash
		if err := rows.Scan(&f.ID, &f.Kind, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) PurgeFlashes(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM flash_messages WHERE consumed_at IS NOT NULL OR expires_at <= $1
  `, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
