package handler

import (
	"context"

	"github.com/hitoshi/streamqa/internal/model"
	"github.com/hitoshi/streamqa/internal/question"
)

// QuestionServiceAdapter は question.Service を QuestionServiceInterface と StreamerFinder に適合させるアダプタ。
type QuestionServiceAdapter struct {
	svc *question.Service
}

// NewQuestionServiceAdapter はQuestionServiceAdapterを生成する。
func NewQuestionServiceAdapter(svc *question.Service) *QuestionServiceAdapter {
	return &QuestionServiceAdapter{svc: svc}
}

// ListQuestions は質問一覧をhandlerレスポンス型で返す。
func (a *QuestionServiceAdapter) ListQuestions(ctx context.Context, ownerID string) ([]questionResponse, error) {
	questions, err := a.svc.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	results := make([]questionResponse, len(questions))
	for i, q := range questions {
		results[i] = toQuestionResponse(q)
	}
	return results, nil
}

// Pin は質問をピン留めする。
func (a *QuestionServiceAdapter) Pin(ctx context.Context, ownerID, questionID string) error {
	return a.svc.Pin(ctx, ownerID, questionID)
}

// Unpin はピン留めを解除する。
func (a *QuestionServiceAdapter) Unpin(ctx context.Context, ownerID string) error {
	return a.svc.Unpin(ctx, ownerID)
}

// Ask は質問を投稿しhandlerレスポンス型で返す。
func (a *QuestionServiceAdapter) Ask(ctx context.Context, ownerName, body string) (*questionResponse, error) {
	q, err := a.svc.Ask(ctx, ownerName, body)
	if err != nil {
		return nil, err
	}
	resp := toQuestionResponse(*q)
	return &resp, nil
}

// Pinned はピン留め中の質問をhandlerレスポンス型で返す。
func (a *QuestionServiceAdapter) Pinned(ctx context.Context, ownerID string) (*questionResponse, error) {
	q, err := a.svc.Pinned(ctx, ownerID)
	if err != nil || q == nil {
		return nil, err
	}
	resp := toQuestionResponse(*q)
	return &resp, nil
}

// Streamer は投稿ページの宛先の配信者を解決する。
func (a *QuestionServiceAdapter) Streamer(ctx context.Context, name string) (*model.User, error) {
	return a.svc.Streamer(ctx, name)
}

// toQuestionResponse はドメインのQuestionをhandlerのレスポンス型に変換する。
func toQuestionResponse(q model.Question) questionResponse {
	return questionResponse{
		ID:        q.ID,
		Body:      q.Body,
		CreatedAt: q.CreatedAt,
	}
}

// --- compile-time interface checks ---

var _ QuestionServiceInterface = (*QuestionServiceAdapter)(nil)
var _ StreamerFinder = (*QuestionServiceAdapter)(nil)
