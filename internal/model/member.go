// Package model はドメインモデルを定義する。
package model

import "time"

// Identity はIdP（Google）で認証された本人情報を表す。
// 認可コード交換時に1回だけ取得し、本システムでは変更しない。
type Identity struct {
	SubjectID string
	Email     string
	Name      string
	AvatarURL string
}

// AuthorizedRecord はメンバー領域の利用を許可されたメールアドレスを表す。
// emailが一意キー。
type AuthorizedRecord struct {
	Email string
	Name  string
}

// UserProfile はサインイン済みメンバーのキャッシュ。
// 認可の根拠ではなく、誰がいつサインインしたかの記録として扱う。
type UserProfile struct {
	ID         string // IdPのsubject id
	Email      string
	Name       string
	AvatarURL  string
	LastSignIn time.Time
	CreatedAt  time.Time
}

// Session はサーバー側で保持するログインセッションを表す。
// 認可済みか否かに関わらず、IdPで認証された本人情報を保持する。
type Session struct {
	ID        string
	Identity  Identity
	ExpiresAt time.Time
	CreatedAt time.Time
}

// DefaultProfileName はIdPから表示名が得られなかった場合の名前。
const DefaultProfileName = "User"
