// Package auth はGoogle OAuthによるサインイン、ロスターによる認可判定、
// セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/irissociety/irisportal/internal/model"
	"github.com/irissociety/irisportal/internal/repository"
)

// ProviderUser はIdPから取得した本人情報を表す。
type ProviderUser struct {
	SubjectID string
	Email     string
	FullName  string
	Name      string
	AvatarURL string
}

// DisplayName はフルネーム、名前、"User"の順で最初に空でない値を返す。
func (u *ProviderUser) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Name != "" {
		return u.Name
	}
	return model.DefaultProfileName
}

// Identity はセッションに保存する本人情報に変換する。
func (u *ProviderUser) Identity() model.Identity {
	return model.Identity{
		SubjectID: u.SubjectID,
		Email:     u.Email,
		Name:      u.DisplayName(),
		AvatarURL: u.AvatarURL,
	}
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードを交換し、本人情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*ProviderUser, error)
}

// Metrics は認証フローの結果を記録するインターフェース。
type Metrics interface {
	RecordCallbackOutcome(outcome string)
	RecordAuthorizationCheck(status string)
}

// Outcome はコールバック処理の結果。
type Outcome int

const (
	// OutcomeError はエラーページへ遷移する。Messageが空の場合は汎用エラー。
	OutcomeError Outcome = iota
	// OutcomeAuthorized はnextで指定された画面へ遷移する。
	OutcomeAuthorized
	// OutcomeUnauthorized はunauthorizedページへ遷移する。
	OutcomeUnauthorized
)

// String はメトリクスのラベル用の表記を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeAuthorized:
		return "authorized"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}

// CallbackRequest はコールバックのクエリパラメータとstate Cookieの値。
type CallbackRequest struct {
	Code             string
	State            string
	ExpectedState    string
	Error            string
	ErrorDescription string
}

// CallbackResult はコールバック処理の結果。
type CallbackResult struct {
	Outcome Outcome
	Message string         // OutcomeErrorの場合の表示用メッセージ
	Session *model.Session // 本人確認できた場合に発行したセッション
}

// SessionState はセッション確認の結果。
type SessionState struct {
	Session *model.Session
	Status  model.AuthorizationStatus
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	authorizer  *Authorizer
	profileRepo repository.ProfileRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	metrics     Metrics
	now         func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	oauth OAuthProvider,
	authorizer *Authorizer,
	profileRepo repository.ProfileRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
	metrics Metrics,
) *Service {
	return &Service{
		oauth:       oauth,
		authorizer:  authorizer,
		profileRepo: profileRepo,
		sessionRepo: sessionRepo,
		config:      config,
		metrics:     metrics,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、遷移先を決定する。
//
// errorパラメータがあれば交換を行わずにエラーとする。
// codeがあればstateを検証して交換し、ロスターを照会する。
// 認可された場合のみプロフィールをUPSERTする。UPSERTの失敗は遷移に影響しない。
// いずれの失敗も再試行しない。
func (s *Service) HandleCallback(ctx context.Context, req CallbackRequest) *CallbackResult {
	result := s.handleCallback(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordCallbackOutcome(result.Outcome.String())
	}
	return result
}

func (s *Service) handleCallback(ctx context.Context, req CallbackRequest) *CallbackResult {
	// 1. IdPからのエラー
	if req.Error != "" {
		message := req.ErrorDescription
		if message == "" {
			message = req.Error
		}
		slog.Info("oauth provider returned error",
			slog.String("error", req.Error),
			slog.String("error_description", req.ErrorDescription),
		)
		return errorResult(message)
	}

	if req.Code == "" {
		return errorResult("")
	}

	// 2. stateの検証
	if req.State == "" || req.State != req.ExpectedState {
		slog.Warn("oauth state mismatch")
		return errorResult("invalid state parameter")
	}

	// 3. 認可コードを交換
	user, err := s.oauth.ExchangeCode(ctx, req.Code)
	if err != nil {
		slog.Error("failed to exchange oauth code", slog.String("error", err.Error()))
		return errorResult(err.Error())
	}
	if user.Email == "" {
		return errorResult("")
	}

	// 4. ロスターを照会
	authorized, err := s.authorizer.IsAuthorized(ctx, user.Email)
	s.recordCheck(authorized, err)
	if err != nil {
		slog.Error("roster lookup failed",
			slog.String("member_id", user.SubjectID),
			slog.String("error", err.Error()),
		)
		return errorResult(err.Error())
	}

	identity := user.Identity()

	// 5. セッションを発行
	session, err := s.createSession(ctx, identity)
	if err != nil {
		slog.Error("failed to create session", slog.String("error", err.Error()))
		return errorResult("failed to create session")
	}

	if !authorized {
		slog.Info("member not authorized",
			slog.String("member_id", identity.SubjectID),
			slog.String("email", identity.Email),
		)
		return &CallbackResult{Outcome: OutcomeUnauthorized, Session: session}
	}

	// 6. プロフィールをUPSERT（失敗してもサインインは継続）
	s.syncProfile(ctx, identity)

	slog.Info("member signed in", slog.String("member_id", identity.SubjectID))
	return &CallbackResult{Outcome: OutcomeAuthorized, Session: session}
}

// CheckSession はセッションを取得し、認可状態を再判定する。
// セッションが存在しない場合はnilを返す。
// 認可されている場合はプロフィールをUPSERTする（created_atは更新しない）。
// ロスターの照会に失敗した場合はStatusをUnknownとして返す。
func (s *Service) CheckSession(ctx context.Context, sessionID string) (*SessionState, error) {
	session, err := s.CurrentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	status, err := s.authorizer.Status(ctx, session.Identity.Email)
	s.recordCheck(status == model.Authorized, err)
	if err != nil {
		slog.Error("roster lookup failed",
			slog.String("member_id", session.Identity.SubjectID),
			slog.String("error", err.Error()),
		)
		return &SessionState{Session: session, Status: model.AuthorizationUnknown}, nil
	}

	if status == model.Authorized {
		s.syncProfile(ctx, session.Identity)
	}

	return &SessionState{Session: session, Status: status}, nil
}

// CurrentSession は有効なセッションを返す。存在しないか期限切れの場合はnilを返す。
func (s *Service) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("member signed out")
	return nil
}

func (s *Service) syncProfile(ctx context.Context, identity model.Identity) {
	now := s.now()
	profile := &model.UserProfile{
		ID:         identity.SubjectID,
		Email:      identity.Email,
		Name:       identity.Name,
		AvatarURL:  identity.AvatarURL,
		LastSignIn: now,
		CreatedAt:  now,
	}
	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		slog.Error("failed to upsert user profile",
			slog.String("member_id", identity.SubjectID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) createSession(ctx context.Context, identity model.Identity) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		Identity:  identity,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) recordCheck(authorized bool, err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err != nil:
		s.metrics.RecordAuthorizationCheck(model.AuthorizationUnknown.String())
	default:
		s.metrics.RecordAuthorizationCheck(model.AuthorizationStatusOf(authorized).String())
	}
}

func errorResult(message string) *CallbackResult {
	return &CallbackResult{Outcome: OutcomeError, Message: message}
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
