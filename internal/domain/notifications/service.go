package notifications

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Service struct {
	store StoreAPI
	ttl   time.Duration
	now   func() time.Time
}

func New(store StoreAPI, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// Push queues a message for the user's next page load. Delivery is best
// effort: a failed write is logged and never fails the caller.
func (s *Service) Push(ctx context.Context, userID string, kind Kind, message string) {
	if s == nil || userID == "" || strings.TrimSpace(message) == "" {
		return
	}
	if err := s.store.CreateFlash(ctx, userID, kind, message, s.now().Add(s.ttl)); err != nil {
		slog.Warn("flash message write failed", "user_id", userID, "type", kind, "err", err)
	}
}

func (s *Service) Success(ctx context.Context, userID, message string) {
	s.Push(ctx, userID, KindSuccess, message)
}

func (s *Service) Error(ctx context.Context, userID, message string) {
	s.Push(ctx, userID, KindError, message)
}

// Drain returns the user's unexpired messages and consumes them.
func (s *Service) Drain(ctx context.Context, userID string) ([]Flash, error) {
	return s.store.DrainFlashes(ctx, userID, s.now())
}

func (s *Service) Purge(ctx context.Context) (int, error) {
	return s.store.PurgeFlashes(ctx, s.now())
}
