// Package auth はTwitch OAuthによるサインインとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/streamqa/internal/model"
	"github.com/hitoshi/streamqa/internal/repository"
)

// sessionIDBytes はセッションIDの乱数バイト長。hexで64文字になる。
const sessionIDBytes = 32

var errEmptySessionID = errors.New("session ID is required")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Name           string // ログイン名
	DisplayName    string
	AvatarURL      string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

func (c ServiceConfig) sessionLifetime() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// Service はサインイン・サインアウトとViewerの解決を担う。
type Service struct {
	oauth    OAuthProvider
	users    repository.UserRepository
	idents   repository.IdentityRepository
	sessions repository.SessionRepository
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	users repository.UserRepository,
	idents repository.IdentityRepository,
	sessions repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:    oauth,
		users:    users,
		idents:   idents,
		sessions: sessions,
		config:   config,
		now:      time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードを交換してユーザーを確定し、新しいセッションを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	userID, err := s.resolveUser(ctx, info)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// resolveUser はOAuthの外部IDに対応するユーザーIDを返す。
// 初回サインインではusersとidentitiesを同時に作成し、
// 2回目以降はTwitch側で変わりうるログイン名・表示名・アバターを最新化する。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	identity, err := s.idents.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if identity != nil {
		return identity.UserID, s.refreshProfile(ctx, identity.UserID, info)
	}
	return s.register(ctx, info)
}

func (s *Service) refreshProfile(ctx context.Context, userID string, info *OAuthUserInfo) error {
	profile := &model.User{
		ID:          userID,
		Name:        info.Name,
		DisplayName: info.DisplayName,
		AvatarURL:   info.AvatarURL,
		UpdatedAt:   s.now(),
	}
	if err := s.users.UpdateProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	slog.Info("streamer signed in",
		slog.String("user_id", userID),
		slog.String("provider", info.Provider),
	)
	return nil
}

func (s *Service) register(ctx context.Context, info *OAuthUserInfo) (string, error) {
	now := s.now()
	user := &model.User{
		ID:          uuid.New().String(),
		Name:        info.Name,
		DisplayName: info.DisplayName,
		AvatarURL:   info.AvatarURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}
	if err := s.users.CreateWithIdentity(ctx, user, identity); err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("streamer registered",
		slog.String("user_id", user.ID),
		slog.String("name", info.Name),
		slog.String("provider", info.Provider),
	)
	return user.ID, nil
}

// Logout はセッションを破棄する。既に存在しないセッションでもエラーにしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errEmptySessionID
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("streamer signed out")
	return nil
}

// CurrentViewer はセッションIDからサインイン中のViewerを解決する。
// セッションが空・期限切れ・ユーザー削除済みの場合はエラーではなく(nil, nil)を返す。
func (s *Service) CurrentViewer(ctx context.Context, sessionID string) (*model.Viewer, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return model.NewViewer(user), nil
}

func (s *Service) issueSession(ctx context.Context, userID string) (*model.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(s.config.sessionLifetime()),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}
