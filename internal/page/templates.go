package page

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Templates はパース済みのページテンプレート。
type Templates struct {
	t *template.Template
}

// ParseTemplates は埋め込みのテンプレートをパースする。
func ParseTemplates() (*Templates, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Templates{t: t}, nil
}

// MustParseTemplates はParseTemplatesの失敗時にpanicする。
func MustParseTemplates() *Templates {
	t, err := ParseTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Templates) RenderHome(w io.Writer, data HomeData) error {
	return t.t.ExecuteTemplate(w, "home", data)
}

func (t *Templates) RenderQuestions(w io.Writer, data QuestionsFragment) error {
	return t.t.ExecuteTemplate(w, "questions", data)
}

func (t *Templates) RenderAsk(w io.Writer, data AskData) error {
	return t.t.ExecuteTemplate(w, "ask", data)
}

func (t *Templates) RenderNotFound(w io.Writer, data NotFoundData) error {
	return t.t.ExecuteTemplate(w, "not_found", data)
}

// StaticHandler は /static/ 配下の埋め込みファイル（app.js, style.css）を配信する。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
