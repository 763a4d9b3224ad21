package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/irissociety/irisportal/internal/roster"
)

// RosterImporter はロスター取り込みを実行する。*roster.Importerが実装する。
type RosterImporter interface {
	Import(ctx context.Context, src roster.Source) (*roster.Result, error)
}

// RosterHandler は管理用のロスター取り込みハンドラー。
type RosterHandler struct {
	importer RosterImporter
	source   roster.Source
}

// NewRosterHandler はRosterHandlerを生成する。sourceは設定済みのロスターURL。
func NewRosterHandler(importer RosterImporter, source roster.Source) *RosterHandler {
	return &RosterHandler{
		importer: importer,
		source:   source,
	}
}

// Import はロスターを取り込み、結果を返す。
// GET /api/roster/import
//
// 形式エラーは400、それ以外の失敗は500を返す。
// 失敗時のcommittedは失敗前にコミット済みのレコード数。
func (h *RosterHandler) Import(w http.ResponseWriter, r *http.Request) {
	result, err := h.importer.Import(r.Context(), h.source)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"count":   result.Count,
		})
		return
	}

	slog.Error("roster import failed",
		slog.String("source", h.source.String()),
		slog.String("error", err.Error()),
	)

	committed := 0
	var batchErr *roster.BatchError
	if errors.As(err, &batchErr) {
		committed = batchErr.Committed
	}

	status := http.StatusInternalServerError
	var formatErr *roster.FormatError
	if errors.As(err, &formatErr) {
		status = http.StatusBadRequest
	}

	writeJSON(w, status, map[string]any{
		"success":   false,
		"error":     err.Error(),
		"committed": committed,
	})
}
