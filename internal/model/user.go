// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// User は配信者（ダッシュボードの利用ユーザー）を表す。
// Nameは質問投稿URL（/ask/{name}）の解決に使うログイン名。
type User struct {
	ID          string
	Name        string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Viewer はサインイン中のユーザーの表示用アイデンティティ。
// 未ログイン状態は nil *Viewer で表し、呼び出し側は必ずnil判定してから参照する。
// DisplayName、AvatarURLは空文字列のとき未設定を意味する。
type Viewer struct {
	UserID      string
	DisplayName string
	AvatarURL   string
}

// NewViewer はUserから表示用のViewerを生成する。
// 表示名が未設定の場合はログイン名で代替しない（未設定のまま扱う）。
func NewViewer(u *User) *Viewer {
	if u == nil {
		return nil
	}
	return &Viewer{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// HasDisplayName は表示名が設定されているかを返す。
func (v *Viewer) HasDisplayName() bool {
	return v != nil && strings.TrimSpace(v.DisplayName) != ""
}
