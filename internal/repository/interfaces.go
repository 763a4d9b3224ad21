// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/irissociety/irisportal/internal/model"
)

// RosterRepository は認可ロスター（authorized_users）の永続化インターフェース。
type RosterRepository interface {
	// FindByEmail はメールアドレスの完全一致でレコードを検索する。
	// 大文字小文字は区別する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.AuthorizedRecord, error)

	// UpsertBatch はレコード群をemailをキーとして1トランザクションでUPSERTする。
	// 同一バッチ内にemailの重複があってはならない。
	UpsertBatch(ctx context.Context, records []model.AuthorizedRecord) error

	// Count はロスターの総件数を返す。
	Count(ctx context.Context) (int, error)
}

// ProfileRepository はメンバープロフィール（users）の永続化インターフェース。
type ProfileRepository interface {
	// Upsert はidをキーとしてプロフィールをUPSERTする。
	// 既存行のcreated_atは上書きしない。
	Upsert(ctx context.Context, profile *model.UserProfile) error

	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)

	// DeleteByID は指定IDのプロフィールを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteBySubjectID は指定subjectの全セッションを削除する。
	DeleteBySubjectID(ctx context.Context, subjectID string) error
}
