package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/irissociety/irisportal/internal/model"
	"github.com/lib/pq"
)

// upsertRosterQuery は配列パラメータを展開して複数行を1文でUPSERTする。
const upsertRosterQuery = `INSERT INTO authorized_users (email, name)
 SELECT * FROM unnest($1::text[], $2::text[])
 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name`

// PostgresRosterRepo はPostgreSQLを使用した認可ロスターリポジトリ。
type PostgresRosterRepo struct {
	db *sql.DB
}

// NewPostgresRosterRepo はPostgresRosterRepoを生成する。
func NewPostgresRosterRepo(db *sql.DB) *PostgresRosterRepo {
	return &PostgresRosterRepo{db: db}
}

// FindByEmail はメールアドレスの完全一致でレコードを検索する。見つからない場合はnilを返す。
func (r *PostgresRosterRepo) FindByEmail(ctx context.Context, email string) (*model.AuthorizedRecord, error) {
	record := &model.AuthorizedRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT email, name FROM authorized_users WHERE email = $1`,
		email,
	).Scan(&record.Email, &record.Name)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find authorized user: %w", err)
	}

	return record, nil
}

// UpsertBatch はレコード群を1トランザクションでUPSERTする。
func (r *PostgresRosterRepo) UpsertBatch(ctx context.Context, records []model.AuthorizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	emails, names := splitRecords(records)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertRosterQuery, pq.Array(emails), pq.Array(names)); err != nil {
		return fmt.Errorf("failed to upsert authorized users: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Count はロスターの総件数を返す。
func (r *PostgresRosterRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM authorized_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count authorized users: %w", err)
	}
	return n, nil
}

// splitRecords はレコード群をunnest用の列配列に分解する。
func splitRecords(records []model.AuthorizedRecord) (emails, names []string) {
	emails = make([]string, len(records))
	names = make([]string, len(records))
	for i, rec := range records {
		emails[i] = rec.Email
		names[i] = rec.Name
	}
	return emails, names
}

// compile-time interface check
var _ RosterRepository = (*PostgresRosterRepo)(nil)
