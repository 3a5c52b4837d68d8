// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は視聴者から投稿された質問本文からHTMLを取り除き、
// プレーンテキストとして保存できる形に正規化する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は投稿テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize は全てのタグを除去したプレーンテキストを返す。
	// script, styleの中身は破棄し、エンティティはデコード済みの文字に戻す。
	// 前後の空白は除去する。同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// TextSanitizer はbluemondayのStrictPolicyによるTextSanitizerServiceの実装。
// ポリシーはスレッドセーフに共有できる。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は全てのタグを除去したプレーンテキストを返す。
// 出力はhtml/templateで表示時にエスケープされるため、ここではエスケープ済みの形で保持しない。
func (s *TextSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

var _ TextSanitizerService = (*TextSanitizer)(nil)
