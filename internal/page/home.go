package page

import (
	"context"
	"time"

	"github.com/hitoshi/streamqa/internal/metrics"
	"github.com/hitoshi/streamqa/internal/model"
)

// QuestionsFragment は質問一覧部分の描画モデル。
// ダッシュボード全体と /fragments/questions の両方で使う。
type QuestionsFragment struct {
	View         QuestionsView
	CSRFToken    string
	PinActionURL string
	PinRPCURL    string
}

// HomeData はダッシュボードの描画モデル。
// Viewerがnilの場合はサインインの案内だけを描画する。
type HomeData struct {
	Meta        Meta
	Viewer      *model.Viewer
	Nav         NavButtons
	Questions   QuestionsFragment
	CSRFToken   string
	SignInURL   string
	FragmentURL string
	RealtimeURL string
}

// SignedIn はサインイン済みかどうかを返す。
func (d HomeData) SignedIn() bool {
	return d.Viewer != nil
}

// Builder はリクエストごとの描画モデルを組み立てる。
type Builder struct {
	origin  string
	lister  QuestionLister
	budget  time.Duration
	metrics metrics.MetricsCollector
}

// NewBuilder はBuilderを生成する。
// originはコピー用URLの組み立てに、budgetはサーバー描画時の一覧取得の待ち時間に使う。
func NewBuilder(origin string, lister QuestionLister, budget time.Duration, mc metrics.MetricsCollector) *Builder {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Builder{
		origin:  origin,
		lister:  lister,
		budget:  budget,
		metrics: mc,
	}
}

// Home はダッシュボードの描画モデルを返す。
// サインイン済みの場合のみ質問一覧を取得する。
func (b *Builder) Home(ctx context.Context, viewer *model.Viewer, csrfToken string) HomeData {
	data := HomeData{
		Meta:      HomeMeta(),
		Viewer:    viewer,
		CSRFToken: csrfToken,
		SignInURL: SignInPath,
	}
	if viewer == nil {
		b.metrics.RecordPageRender("signed_out")
		return data
	}

	view := LoadQuestionsView(ctx, b.lister, viewer.UserID, b.budget)
	b.metrics.RecordPageRender(string(view.State))

	data.Nav = NewNavButtons(b.origin, viewer)
	data.Questions = newFragment(view, csrfToken)
	data.FragmentURL = FragmentPath
	data.RealtimeURL = RealtimePath(viewer.UserID)
	return data
}

// Fragment は質問一覧部分だけの描画モデルを返す。
// 待ち時間の制限はかけず、リクエストのコンテキストの期限まで待つ。
func (b *Builder) Fragment(ctx context.Context, viewer *model.Viewer, csrfToken string) QuestionsFragment {
	view := LoadQuestionsView(ctx, b.lister, viewer.UserID, 0)
	return newFragment(view, csrfToken)
}

func newFragment(view QuestionsView, csrfToken string) QuestionsFragment {
	return QuestionsFragment{
		View:         view,
		CSRFToken:    csrfToken,
		PinActionURL: PinActionPath,
		PinRPCURL:    PinRPCPath,
	}
}

// AskData は質問投稿ページの描画モデル。
type AskData struct {
	Meta         Meta
	StreamerName string
	ActionURL    string
	CSRFToken    string
	Body         string
	Error        string
	Sent         bool
	MaxLength    int
}

// NewAskData は配信者名から質問投稿ページの描画モデルを作る。
func NewAskData(streamerName, csrfToken string) AskData {
	return AskData{
		Meta:         HomeMeta(),
		StreamerName: streamerName,
		ActionURL:    askPathPrefix + streamerName,
		CSRFToken:    csrfToken,
		MaxLength:    model.QuestionBodyMaxLength,
	}
}

// NotFoundData は404ページの描画モデル。
type NotFoundData struct {
	Meta    Meta
	Message string
}
