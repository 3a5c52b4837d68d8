package page

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/streamqa/internal/model"
)

// ViewState は質問一覧の表示状態。
type ViewState string

const (
	StateLoading ViewState = "loading"
	StateLoaded  ViewState = "loaded"
	StateFailed  ViewState = "failed"
)

// QuestionLister は配信者宛ての質問一覧を到着順で返す。
// question.Serviceが実装する。
type QuestionLister interface {
	List(ctx context.Context, ownerID string) ([]model.Question, error)
}

// QuestionsView は質問一覧の描画モデル。
type QuestionsView struct {
	State     ViewState
	Questions []model.Question
}

// IsLoading は取得待ちかどうかを返す。取得待ちの間は何も描画しない。
func (v QuestionsView) IsLoading() bool { return v.State == StateLoading }

// IsLoaded は取得済みかどうかを返す。
func (v QuestionsView) IsLoaded() bool { return v.State == StateLoaded }

// IsFailed は取得に失敗したかどうかを返す。
func (v QuestionsView) IsFailed() bool { return v.State == StateFailed }

// LoadedView は取得済みの一覧から描画モデルを作る。
func LoadedView(questions []model.Question) QuestionsView {
	if questions == nil {
		questions = []model.Question{}
	}
	return QuestionsView{State: StateLoaded, Questions: questions}
}

type listResult struct {
	questions []model.Question
	err       error
}

// LoadQuestionsView は質問一覧を取得して描画モデルを返す。
// budgetが正の場合、その時間内に取得が終わらなければLoadingを返し、
// 続きはブラウザが /fragments/questions から読み込む。
// budgetが0以下の場合はctxの期限まで待つ。
func LoadQuestionsView(ctx context.Context, lister QuestionLister, ownerID string, budget time.Duration) QuestionsView {
	if budget <= 0 {
		questions, err := lister.List(ctx, ownerID)
		if err != nil {
			logListFailure(ownerID, err)
			return QuestionsView{State: StateFailed}
		}
		return LoadedView(questions)
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	// 期限切れ後に結果が届いてもゴルーチンが詰まらないようバッファを1つ持たせる
	ch := make(chan listResult, 1)
	go func() {
		questions, err := lister.List(ctx, ownerID)
		ch <- listResult{questions: questions, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() != nil {
				return QuestionsView{State: StateLoading}
			}
			logListFailure(ownerID, res.err)
			return QuestionsView{State: StateFailed}
		}
		return LoadedView(res.questions)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return QuestionsView{State: StateLoading}
		}
		return QuestionsView{State: StateFailed}
	}
}

func logListFailure(ownerID string, err error) {
	slog.Error("failed to list questions",
		slog.String("user_id", ownerID),
		slog.String("error", err.Error()),
	)
}
