package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/irissociety/irisportal/internal/model"
)

// upsertProfileQuery はidをキーとしたプロフィールのUPSERT。
// created_atは初回INSERT時のみ設定し、以降のサインインでは保持する。
const upsertProfileQuery = `INSERT INTO users (id, email, name, avatar_url, last_sign_in, created_at)
 VALUES ($1, $2, $3, $4, $5, $6)
 ON CONFLICT (id) DO UPDATE SET
   email = EXCLUDED.email,
   name = EXCLUDED.name,
   avatar_url = EXCLUDED.avatar_url,
   last_sign_in = EXCLUDED.last_sign_in`

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// Upsert はidをキーとしてプロフィールをUPSERTする。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.UserProfile) error {
	_, err := r.db.ExecContext(ctx, upsertProfileQuery,
		profile.ID,
		profile.Email,
		profile.Name,
		nullableString(profile.AvatarURL),
		profile.LastSignIn,
		profile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	profile := &model.UserProfile{}
	var avatarURL sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, avatar_url, last_sign_in, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&profile.ID, &profile.Email, &profile.Name, &avatarURL, &profile.LastSignIn, &profile.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user profile by ID: %w", err)
	}

	profile.AvatarURL = avatarURL.String
	return profile, nil
}

// DeleteByID は指定IDのプロフィールを削除する。
// 存在しない場合もエラーにしない（冪等）。
func (r *PostgresProfileRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user profile: %w", err)
	}
	return nil
}

// nullableString は空文字列をNULLとして扱う。
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
