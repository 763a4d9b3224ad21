package auth

import (
	"context"
	"fmt"

	"github.com/irissociety/irisportal/internal/model"
	"github.com/irissociety/irisportal/internal/repository"
)

// Authorizer はメールアドレスがロスターに含まれるかを判定する。
// コールバック、セッション確認、ルート保護の全てがこの判定を共有する。
type Authorizer struct {
	roster repository.RosterRepository
}

// NewAuthorizer はAuthorizerを生成する。
func NewAuthorizer(roster repository.RosterRepository) *Authorizer {
	return &Authorizer{roster: roster}
}

// IsAuthorized はemailと完全一致（大文字小文字を区別）するロスターレコードがあるかを返す。
// レコードが存在しないことはエラーではなく、falseを返す。
func (a *Authorizer) IsAuthorized(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}

	record, err := a.roster.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to look up roster: %w", err)
	}

	return record != nil, nil
}

// Status はIsAuthorizedの結果を三値で返す。判定できなかった場合はUnknownとエラーを返す。
func (a *Authorizer) Status(ctx context.Context, email string) (model.AuthorizationStatus, error) {
	ok, err := a.IsAuthorized(ctx, email)
	if err != nil {
		return model.AuthorizationUnknown, err
	}
	return model.AuthorizationStatusOf(ok), nil
}
