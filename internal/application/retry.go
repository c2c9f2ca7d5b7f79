package application

import (
	"context"
	"errors"

	"github.com/ccc-cruise/service-promo/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// maxTxAttempts bounds transparent retries of serialization failures.
const maxTxAttempts = 3

// serialization_failure and deadlock_detected: the transaction is safe to
// rerun from the top.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// withRetry reruns fn up to maxTxAttempts times on retryable storage
// conflicts, then surfaces the failure as a Conflict.
func withRetry(ctx context.Context, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || !isRetryable(err) {
			return err
		}
		logger.Warn("retrying after storage conflict",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return domain.NewConflictError("operation %s failed after repeated storage conflicts", op)
}
