package roster

import (
	"context"
	"log/slog"
	"time"
)

// SyncRunner は1回分の取り込みを実行する。*Importerが実装する。
type SyncRunner interface {
	Import(ctx context.Context, src Source) (*Result, error)
}

// Syncer はworkerモードで取り込みを定期実行する。
type Syncer struct {
	runner SyncRunner
	source Source
	logger *slog.Logger

	consecutiveFailures int
}

// NewSyncer はSyncerを生成する。
func NewSyncer(runner SyncRunner, source Source, logger *slog.Logger) *Syncer {
	return &Syncer{runner: runner, source: source, logger: logger}
}

// Start は起動直後に1回、その後interval毎に取り込みを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
// 取得失敗時は指数バックオフでinterval以内に再試行する。
func (s *Syncer) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("ロスター同期を開始しました",
		slog.Duration("interval", interval),
		slog.String("source", s.source.String()),
	)

	timer := time.NewTimer(s.next(s.RunOnce(ctx), interval))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ロスター同期を停止しました")
			return
		case <-timer.C:
			timer.Reset(s.next(s.RunOnce(ctx), interval))
		}
	}
}

// RunOnce は取り込みを1回実行し、失敗時はそのエラーを返す。
func (s *Syncer) RunOnce(ctx context.Context) error {
	_, err := s.runner.Import(ctx, s.source)
	if err != nil {
		s.logger.Error("ロスター同期に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	return err
}

// next は直前の結果から次回実行までの待ち時間を決める。
func (s *Syncer) next(err error, interval time.Duration) time.Duration {
	if err == nil || !isRetryable(err) {
		s.consecutiveFailures = 0
		return interval
	}

	s.consecutiveFailures++
	delay := retryDelay(s.consecutiveFailures, interval)
	s.logger.Warn("ロスター同期を再試行します",
		slog.Int("consecutive_failures", s.consecutiveFailures),
		slog.Duration("retry_in", delay),
	)
	return delay
}
