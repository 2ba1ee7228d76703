package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pawhaven/pawhaven/internal/cache"
	"github.com/pawhaven/pawhaven/pkg/logger"
	"github.com/pawhaven/pawhaven/pkg/metrics"
)

// WindowGuard suppresses duplicate sends of the same logical notification
// within a time window. The first caller for a key inside the window wins;
// everyone else is silently rejected until the claim expires.
//
// When the claim store is unreachable the guard fails closed: the send is
// treated as already performed and a warning is logged. Duplicate suppression
// is preferred over duplicate delivery.
type WindowGuard struct {
	store cache.Store
}

// NewWindowGuard constructs a guard over the supplied claim store.
func NewWindowGuard(store cache.Store) (*WindowGuard, error) {
	if store == nil {
		return nil, errors.New("window guard: store is required")
	}
	return &WindowGuard{store: store}, nil
}

// Allow reports whether the caller holds the claim for key within the window.
func (g *WindowGuard) Allow(ctx context.Context, key string, window time.Duration) bool {
	ctx = ensureContext(ctx)
	key = strings.TrimSpace(key)
	if key == "" || window <= 0 {
		return true
	}

	granted, err := g.store.TryClaim(ctx, key, window)
	if err != nil {
		logger.WithModule("guard").Warn("claim store unavailable, suppressing send",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	return granted
}

// Release drops claims so a send can be retried before the window expires.
func (g *WindowGuard) Release(ctx context.Context, keys ...string) error {
	return g.store.Release(ensureContext(ctx), keys...)
}

func recordDedupRejection(notificationType string) {
	metrics.DedupRejections.WithLabelValues(defaultIfEmpty(notificationType, "untyped")).Inc()
}
