// Package clipboard は共有用URLの組み立てとクリップボードへの書き込みを提供する。
package clipboard

import (
	"log/slog"
	"strings"
)

// Platform はクリップボードを持つ実行環境を表す。
type Platform interface {
	// Origin は現在のオリジン（scheme://host[:port]）を返す。
	// 対話的な環境でない場合はfalseを返す。
	Origin() (string, bool)
	// WriteText はクリップボードにテキストを書き込む。
	WriteText(text string) error
}

// URL はoriginとpathを連結した絶対URLを返す。originの末尾スラッシュは除去する。
func URL(origin, path string) string {
	return strings.TrimRight(origin, "/") + path
}

// CopyURL は origin+path をクリップボードに書き込むアクションを返す。
// pが nil またはオリジンを持たない環境では、何もしないアクションになる。
// 書き込みの失敗はログに記録するだけで呼び出し元には返さない。
func CopyURL(p Platform, path string) func() {
	return func() {
		if p == nil {
			return
		}
		origin, ok := p.Origin()
		if !ok {
			return
		}
		if err := p.WriteText(URL(origin, path)); err != nil {
			slog.Warn("clipboard write failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
}
