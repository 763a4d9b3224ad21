package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/irissociety/irisportal/internal/model"
	"github.com/irissociety/irisportal/internal/repository"
)

// DefaultBatchSize は1トランザクションでUPSERTするレコード数のデフォルト値。
const DefaultBatchSize = 100

// 取り込み結果のステータス。メトリクスのラベルに使う。
const (
	StatusSuccess     = "success"
	StatusFormatError = "format_error"
	StatusFetchError  = "fetch_error"
	StatusPartial     = "partial_failure"
)

// BatchError はバッチUPSERTの途中で失敗した場合のエラー。
// 失敗前にコミット済みのバッチはロールバックされない。
type BatchError struct {
	Committed int // 失敗前にコミットされたレコード数
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("roster import aborted after %d records: %v", e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Result は取り込み成功時の結果。
type Result struct {
	RunID    string
	Count    int
	Duration time.Duration
	// Total は取り込み後のロスター総件数。取得できなかった場合は-1。
	Total int
}

// ImportRecorder は取り込み結果をメトリクスとして記録するインターフェース。
type ImportRecorder interface {
	RecordRosterImport(status string, records int, duration time.Duration)
}

// Importer は取り込み元のCSVをauthorized_usersへ反映する。
type Importer struct {
	repo      repository.RosterRepository
	batchSize int
	recorder  ImportRecorder
	logger    *slog.Logger
}

// NewImporter はImporterを生成する。
// batchSizeが0以下の場合はDefaultBatchSizeを使用する。recorderはnilでもよい。
func NewImporter(repo repository.RosterRepository, batchSize int, recorder ImportRecorder, logger *slog.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		repo:      repo,
		batchSize: batchSize,
		recorder:  recorder,
		logger:    logger,
	}
}

// Import は取り込み元を読み込み、レコードをバッチ単位でUPSERTする。
//
// 形式エラーの場合は*FormatErrorを返し、書き込みは行わない。
// バッチの失敗時は残りのバッチを中断し、コミット済み件数を持つ*BatchErrorを返す。
func (im *Importer) Import(ctx context.Context, src Source) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := im.logger.With(
		slog.String("run_id", runID),
		slog.String("source", src.String()),
	)

	// 1. 取り込み元を開いてCSVを解析
	records, err := im.load(ctx, src)
	if err != nil {
		status := StatusFetchError
		var formatErr *FormatError
		if errors.As(err, &formatErr) {
			status = StatusFormatError
		}
		im.record(status, 0, time.Since(start))
		logger.Error("roster import failed",
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// 2. バッチ単位でUPSERT（1バッチ1トランザクション）
	committed := 0
	for i := 0; i < len(records); i += im.batchSize {
		end := i + im.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		if err := im.repo.UpsertBatch(ctx, batch); err != nil {
			im.record(StatusPartial, committed, time.Since(start))
			logger.Error("roster batch upsert failed",
				slog.Int("committed", committed),
				slog.Int("remaining", len(records)-committed),
				slog.String("error", err.Error()),
			)
			return nil, &BatchError{Committed: committed, Err: err}
		}
		committed += len(batch)
	}

	duration := time.Since(start)
	im.record(StatusSuccess, committed, duration)

	// 3. 取り込み後の総件数（失敗しても取り込み自体は成功扱い）
	total, err := im.repo.Count(ctx)
	if err != nil {
		logger.Warn("failed to count roster after import", slog.String("error", err.Error()))
		total = -1
	}

	logger.Info("roster import completed",
		slog.Int("count", committed),
		slog.Int("total", total),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return &Result{RunID: runID, Count: committed, Duration: duration, Total: total}, nil
}

func (im *Importer) load(ctx context.Context, src Source) ([]model.AuthorizedRecord, error) {
	body, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return Parse(body)
}

func (im *Importer) record(status string, records int, duration time.Duration) {
	if im.recorder != nil {
		im.recorder.RecordRosterImport(status, records, duration)
	}
}
