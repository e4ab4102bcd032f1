package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hrdesk/internal/platform/db"
)

// Actor identifies who performed a mutation and from where.
type Actor struct {
	UserID    string
	RequestID string
	IP        string
}

type Entry struct {
	Actor      Actor
	Action     string
	TargetType string
	TargetID   string
	Details    any
}

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	TargetType string          `json:"targetType"`
	TargetID   string          `json:"targetId"`
	Details    json.RawMessage `json:"details,omitempty"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Filter struct {
	Action     string
	TargetType string
	ActorID    string
}

// Insert appends one audit row using q, which is normally the transaction of
// the mutation being recorded.
func Insert(ctx context.Context, q db.DBTX, e Entry) error {
	details := []byte("{}")
	if e.Details != nil {
		payload, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = payload
	}
	_, err := q.Exec(ctx, `
    INSERT INTO audits (actor_id, action, target_type, target_id, details, request_id, ip)
    VALUES (NULLIF($1, '')::uuid, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''))
  `, e.Actor.UserID, e.Action, e.TargetType, e.TargetID, details, e.Actor.RequestID, e.Actor.IP)
	return err
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	return Insert(ctx, s.DB, e)
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := buildWhere(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM audits"+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	where, args := buildWhere(filter)
	query := selectEvents + where + fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	out := make([]Event, 0, limit)
	err := s.each(ctx, query, args, func(evt Event) error {
		out = append(out, evt)
		return nil
	})
	return out, err
}

// Each streams every event matching filter, newest first.
func (s *Service) Each(ctx context.Context, filter Filter, fn func(Event) error) error {
	where, args := buildWhere(filter)
	return s.each(ctx, selectEvents+where+" ORDER BY created_at DESC, id DESC", args, fn)
}

const selectEvents = `SELECT id::text, COALESCE(actor_id::text, ''), action, target_type, COALESCE(target_id, ''),
  details, COALESCE(request_id, ''), COALESCE(ip, ''), created_at FROM audits`

func (s *Service) each(ctx context.Context, query string, args []any, fn func(Event) error) error {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.TargetType, &evt.TargetID, &evt.Details, &evt.RequestID, &evt.IP, &evt.CreatedAt); err != nil {
			return err
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
	return rows.Err()
}

func buildWhere(filter Filter) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if filter.Action != "" {
		args = append(args, filter.Action)
		where += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.TargetType != "" {
		args = append(args, filter.TargetType)
		where += fmt.Sprintf(" AND target_type = $%d", len(args))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		where += fmt.Sprintf(" AND actor_id::text = $%d", len(args))
	}
	return where, args
}
