package auth

import "github.com/irissociety/irisportal/internal/model"

// 画面遷移先のパス。
const (
	PathSignIn       = "/auth/signin"
	PathUnauthorized = "/auth/unauthorized"
	PathError        = "/auth/error"
	PathDashboard    = "/dashboard"
)

// View は保護された画面を表示する時点の認証状態。
type View struct {
	Loading  bool
	Identity *model.Identity
	Status   model.AuthorizationStatus
}

// Decision は保護された画面に対する判定結果。
type Decision int

const (
	DecisionWait Decision = iota
	DecisionRender
	DecisionRedirectSignIn
	DecisionRedirectUnauthorized
)

// String はログ出力用の表記を返す。
func (d Decision) String() string {
	switch d {
	case DecisionWait:
		return "wait"
	case DecisionRender:
		return "render"
	case DecisionRedirectSignIn:
		return "redirect_signin"
	case DecisionRedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Location はリダイレクト判定の場合の遷移先パスを返す。それ以外は空文字列。
func (d Decision) Location() string {
	switch d {
	case DecisionRedirectSignIn:
		return PathSignIn
	case DecisionRedirectUnauthorized:
		return PathUnauthorized
	default:
		return ""
	}
}

// Protect は保護された画面の表示可否を判定する。
//
// 読み込み中、または本人情報があるのに認可状態が未確定の間は待機する。
// 本人情報がなければサインインへ、未認可が確定していればunauthorizedへ誘導する。
func Protect(v View) Decision {
	if v.Loading {
		return DecisionWait
	}
	if v.Identity == nil {
		return DecisionRedirectSignIn
	}
	switch v.Status {
	case model.NotAuthorized:
		return DecisionRedirectUnauthorized
	case model.Authorized:
		return DecisionRender
	default:
		return DecisionWait
	}
}
