package roster

import (
	"errors"
	"time"
)

const (
	// initialRetryDelay は同期失敗後の初回再試行までの遅延。
	initialRetryDelay = time.Minute
)

// retryDelay は連続失敗回数に基づいて次回同期までの遅延を計算する。
// 初回1分、2倍ずつ増加し、通常の同期間隔を上限とする。
func retryDelay(consecutiveFailures int, interval time.Duration) time.Duration {
	delay := initialRetryDelay
	if delay >= interval {
		return interval
	}
	for i := 1; i < consecutiveFailures; i++ {
		delay *= 2
		if delay >= interval {
			return interval
		}
	}
	return delay
}

// isRetryable は早期再試行で回復しうる失敗かどうかを判定する。
// CSVの形式エラーは元データを直すまで再現するため対象外とする。
func isRetryable(err error) bool {
	var formatErr *FormatError
	return !errors.As(err, &formatErr)
}
