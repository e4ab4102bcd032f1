package notifications

import (
	"context"
	"time"
)

type StoreAPI interface {
	CreateFlash(ctx context.Context, userID string, kind Kind, message string, expiresAt time.Time) error
	DrainFlashes(ctx context.Context, userID string, now time.Time) ([]Flash, error)
	PurgeFlashes(ctx context.Context, now time.Time) (int, error)
}
