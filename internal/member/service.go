// Package member はサインイン済みメンバー自身のプロフィール操作を提供する。
package member

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/irissociety/irisportal/internal/model"
	"github.com/irissociety/irisportal/internal/repository"
)

// Service はメンバープロフィールのサービス層。
type Service struct {
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(profileRepo repository.ProfileRepository, sessionRepo repository.SessionRepository) *Service {
	return &Service{
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
	}
}

// Profile はキャッシュされたプロフィールを返す。
// 存在しない場合はPROFILE_NOT_FOUNDのAPIErrorを返す。
func (s *Service) Profile(ctx context.Context, subjectID string) (*model.UserProfile, error) {
	profile, err := s.profileRepo.FindByID(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return profile, nil
}

// Withdraw は全てのセッションとキャッシュされたプロフィールを削除する。
// ロスターのレコードは削除しないため、再度サインインすれば利用を再開できる。
func (s *Service) Withdraw(ctx context.Context, subjectID string) error {
	slog.Info("プロフィール削除を開始します",
		slog.String("member_id", subjectID),
	)

	// 1. 全セッションを削除（全端末からサインアウト）
	if err := s.sessionRepo.DeleteBySubjectID(ctx, subjectID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 2. プロフィールを削除
	if err := s.profileRepo.DeleteByID(ctx, subjectID); err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}

	slog.Info("プロフィール削除が完了しました",
		slog.String("member_id", subjectID),
	)

	return nil
}
