// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/streamqa/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByName はログイン名または表示名（大文字小文字を区別しない）でユーザーを取得する。
	// 両方に一致する行があればログイン名の一致を優先する。
	// 見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はIdPから取得したログイン名・表示名・アバターURLで上書きする。
	UpdateProfile(ctx context.Context, user *model.User) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired はbefore以前に期限切れとなったセッションを削除し、件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// QuestionRepository は質問とピン留め参照の永続化インターフェース。
type QuestionRepository interface {
	// ListByUser は配信者宛ての質問を到着順（created_at, id の昇順）で返す。
	ListByUser(ctx context.Context, userID string) ([]model.Question, error)

	// FindByID は指定IDの質問を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Question, error)

	// Create は質問を作成する。
	Create(ctx context.Context, question *model.Question) error

	// Pin は配信者のピン留め参照を指定質問に置き換える（UPSERT）。
	Pin(ctx context.Context, userID, questionID string) error

	// Unpin は配信者のピン留め参照を削除する。未設定の場合もエラーにしない。
	Unpin(ctx context.Context, userID string) error

	// FindPinned は配信者がピン留め中の質問を返す。未設定の場合はnilを返す。
	FindPinned(ctx context.Context, userID string) (*model.Question, error)
}
