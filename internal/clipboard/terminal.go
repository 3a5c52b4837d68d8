package clipboard

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Terminal はOSC 52エスケープシーケンスで端末のクリップボードに書き込むPlatform。
// 出力先が端末でない場合（パイプやリダイレクト）は非対話的な環境として扱う。
type Terminal struct {
	origin string
	out    io.Writer
	isTTY  bool
}

// NewTerminal はoriginと出力先ファイルからTerminalを生成する。
func NewTerminal(origin string, f *os.File) *Terminal {
	return &Terminal{
		origin: origin,
		out:    f,
		isTTY:  f != nil && term.IsTerminal(int(f.Fd())),
	}
}

// Origin はoriginを返す。端末でない場合や未設定の場合はfalse。
func (t *Terminal) Origin() (string, bool) {
	if !t.isTTY || t.origin == "" {
		return "", false
	}
	return t.origin, true
}

// WriteText はOSC 52シーケンスを出力する。
func (t *Terminal) WriteText(text string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(text))
	if _, err := fmt.Fprintf(t.out, "\x1b]52;c;%s\a", encoded); err != nil {
		return fmt.Errorf("write osc52: %w", err)
	}
	return nil
}

var _ Platform = (*Terminal)(nil)
