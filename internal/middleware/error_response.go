package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/irissociety/irisportal/internal/model"
)

// retryAfterSeconds は認可状態が未確定の場合にクライアントへ示す再試行までの秒数。
const retryAfterSeconds = "5"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// エラーコードに応じてRetry-After、WWW-Authenticateヘッダーを付与する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	h := w.Header()
	switch apiErr.Code {
	case model.ErrCodeAuthorizationPending:
		h.Set("Retry-After", retryAfterSeconds)
	case model.ErrCodeInvalidAdminToken:
		h.Set("WWW-Authenticate", `Bearer realm="irisportal-admin"`)
	}
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
