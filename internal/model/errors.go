// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, roster, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeNotAuthorized        = "NOT_AUTHORIZED"
	ErrCodeAuthorizationPending = "AUTHORIZATION_UNAVAILABLE"
	ErrCodeProfileNotFound      = "PROFILE_NOT_FOUND"
	ErrCodeInvalidAdminToken    = "INVALID_ADMIN_TOKEN"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewUnauthenticatedError はセッションが存在しない場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Sign-in is required.",
		Category: "auth",
		Action:   "Sign in with your Google account.",
	}
}

// NewNotAuthorizedError はロスターに存在しないメールアドレスの場合のエラーを生成する。
func NewNotAuthorizedError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthorized,
		Message:  fmt.Sprintf("%s is not on the authorized list for IRIS Society members.", email),
		Category: "auth",
		Action:   "Contact the IRIS Society administrators or sign in with a different account.",
	}
}

// NewAuthorizationUnavailableError は認可状態を確定できなかった場合のエラーを生成する。
func NewAuthorizationUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthorizationPending,
		Message:  "Membership could not be verified right now.",
		Category: "system",
		Action:   "Please try again in a moment.",
	}
}

// NewProfileNotFoundError はメンバープロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "Member profile was not found.",
		Category: "auth",
		Action:   "Sign out and sign in again.",
	}
}

// NewInvalidAdminTokenError は管理APIトークンが不正な場合のエラーを生成する。
func NewInvalidAdminTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAdminToken,
		Message:  "A valid admin token is required.",
		Category: "auth",
		Action:   "Send the admin token as a Bearer Authorization header.",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
