// Package page はダッシュボードと質問投稿ページのサーバーサイド描画を提供する。
//
// ダッシュボード（/）は描画前にセッションを解決し、初回表示の時点で
// サインイン状態を反映する。ブラウザ側の操作（コピー・ピン留め・再取得）は
// 埋め込みのapp.jsが担い、JavaScriptが無効でもフォーム送信で同じ操作ができる。
package page

import (
	"strings"

	"github.com/hitoshi/streamqa/internal/clipboard"
	"github.com/hitoshi/streamqa/internal/model"
)

// Meta はドキュメントのhead要素に出力する静的なメタデータ。
type Meta struct {
	Title       string
	Description string
	Favicon     string
}

// HomeMeta はダッシュボードのメタデータを返す。
func HomeMeta() Meta {
	return Meta{
		Title:       "Stream Q&A Tool",
		Description: "Generated by create-t3-app",
		Favicon:     "/favicon.ico",
	}
}

// 画面上の操作の遷移先
const (
	SignInPath         = "/auth/twitch/login"
	LogoutPath         = "/auth/logout"
	PinActionPath      = "/actions/pin"
	UnpinActionPath    = "/actions/unpin"
	FragmentPath       = "/fragments/questions"
	PinRPCPath         = "/api/trpc/questions.pin"
	UnpinRPCPath       = "/api/trpc/questions.unpin"
	QuestionIDField    = "questionId"
	embedPathPrefix    = "/embed/"
	askPathPrefix      = "/ask/"
	realtimePathPrefix = "/ws/"
)

// EmbedPath はオーバーレイ埋め込みページのパスを返す。
func EmbedPath(userID string) string {
	return embedPathPrefix + userID
}

// AskPath は視聴者向け質問投稿ページのパスを返す。
// 表示名を小文字化して使う。表示名が未設定の場合は末尾が空のセグメントになる。
func AskPath(viewer *model.Viewer) string {
	if viewer == nil {
		return askPathPrefix
	}
	return askPathPrefix + strings.ToLower(viewer.DisplayName)
}

// RealtimePath は質問一覧の更新通知を受け取るWebSocketのパスを返す。
func RealtimePath(userID string) string {
	return realtimePathPrefix + userID
}

// NavAction はNavButtonsの1つのボタン。
// CopyURLが空でなければコピー操作、そうでなければActionPathへのフォーム送信になる。
type NavAction struct {
	Label      string
	ActionPath string
	FetchPath  string // JavaScriptが有効な場合に使うRPCのパス
	CopyURL    string
}

// IsCopy はクリップボードへのコピー操作かどうかを返す。
func (a NavAction) IsCopy() bool {
	return a.CopyURL != ""
}

// NavButtons はサインイン中の配信者向けの操作ボタン群。
type NavButtons struct {
	Actions []NavAction
}

// NewNavButtons は表示順に4つの操作を組み立てる。
// コピー対象のURLはoriginを付けた絶対URLとして解決済みにしておく。
func NewNavButtons(origin string, viewer *model.Viewer) NavButtons {
	var userID string
	if viewer != nil {
		userID = viewer.UserID
	}
	return NavButtons{
		Actions: []NavAction{
			{Label: "Hide Current Q", ActionPath: UnpinActionPath, FetchPath: UnpinRPCPath},
			{Label: "Copy embed url", CopyURL: clipboard.URL(origin, EmbedPath(userID))},
			{Label: "Copy Q&A url", CopyURL: clipboard.URL(origin, AskPath(viewer))},
			{Label: "Logout", ActionPath: LogoutPath},
		},
	}
}
