package model

// AuthorizationStatus はメンバー領域への認可状態を表す。
// 照会が完了するまではAuthorizationUnknownであり、真偽値では表現しない。
type AuthorizationStatus int

const (
	// AuthorizationUnknown は認可状態が未確定であることを示す。
	AuthorizationUnknown AuthorizationStatus = iota
	// Authorized はロスターにメールアドレスが存在することを示す。
	Authorized
	// NotAuthorized はロスターにメールアドレスが存在しないことを示す。
	NotAuthorized
)

// AuthorizationStatusOf は照会結果の真偽値を認可状態に変換する。
func AuthorizationStatusOf(authorized bool) AuthorizationStatus {
	if authorized {
		return Authorized
	}
	return NotAuthorized
}

// String はログ・JSON出力用の文字列表現を返す。
func (s AuthorizationStatus) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case NotAuthorized:
		return "not_authorized"
	default:
		return "unknown"
	}
}
