// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// ログアウトせずに放置されたセッションはexpires_atを過ぎても行が残るため、
// ワーカーが一定間隔で削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/streamqa/internal/metrics"
)

// SessionPurger は期限切れセッションを削除して件数を返す。
// repository.PostgresSessionRepo が実装する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は期限切れセッションの削除ジョブ。冪等に何度実行してもよい。
type CleanupJob struct {
	sessions SessionPurger
	logger   *slog.Logger
	metrics  metrics.MetricsCollector

	// now はテストで時刻を固定するために差し替える。
	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。mcがnilの場合はメトリクスを記録しない。
func NewCleanupJob(sessions SessionPurger, logger *slog.Logger, mc metrics.MetricsCollector) *CleanupJob {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
		metrics:  mc,
		now:      time.Now,
	}
}

// Run はexpires_atが現在時刻以前のセッションを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordSessionsCleaned(deletedCount)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。ctxがキャンセルされるまでブロックする。
// 1回の失敗でループは止めない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("cleanup cycle failed, retrying on next tick",
			slog.String("error", err.Error()),
		)
	}
}
