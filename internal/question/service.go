// Package question は配信者宛ての質問の一覧・ピン留め・投稿のドメインロジックを提供する。
package question

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/streamqa/internal/metrics"
	"github.com/hitoshi/streamqa/internal/model"
	"github.com/hitoshi/streamqa/internal/repository"
	"github.com/hitoshi/streamqa/internal/security"
)

// Notifier は質問一覧の変化を購読中のダッシュボードへ通知する。
type Notifier interface {
	NotifyQuestionsChanged(userID, reason string)
}

type nopNotifier struct{}

func (nopNotifier) NotifyQuestionsChanged(string, string) {}

// Service は質問管理のサービス層。
type Service struct {
	questionRepo repository.QuestionRepository
	userRepo     repository.UserRepository
	sanitizer    security.TextSanitizerService
	notifier     Notifier
	metrics      metrics.MetricsCollector
}

// NewService はServiceを生成する。notifier, mcがnilの場合は何もしない実装を使う。
func NewService(
	questionRepo repository.QuestionRepository,
	userRepo repository.UserRepository,
	sanitizer security.TextSanitizerService,
	notifier Notifier,
	mc metrics.MetricsCollector,
) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		questionRepo: questionRepo,
		userRepo:     userRepo,
		sanitizer:    sanitizer,
		notifier:     notifier,
		metrics:      mc,
	}
}

// List は配信者宛ての質問を到着順で返す。質問がない場合は空スライスを返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]model.Question, error) {
	start := time.Now()
	questions, err := s.questionRepo.ListByUser(ctx, ownerID)
	s.metrics.RecordQueryLatency("list", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("質問一覧の取得に失敗しました: %w", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// Pin は指定の質問を配信者のピン留めに設定する。既存のピン留めは置き換える（後勝ち）。
// 他の配信者宛ての質問や存在しない質問はQUESTION_NOT_FOUNDを返す。
func (s *Service) Pin(ctx context.Context, ownerID, questionID string) error {
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		return model.NewInvalidRequestError("questionIdは必須です")
	}

	// UUID形式でないIDはDBに渡さず、存在しない質問として扱う
	if _, err := uuid.Parse(questionID); err != nil {
		return model.NewQuestionNotFoundError(questionID)
	}

	q, err := s.questionRepo.FindByID(ctx, questionID)
	if err != nil {
		return fmt.Errorf("質問の取得に失敗しました: %w", err)
	}
	if q == nil || q.UserID != ownerID {
		return model.NewQuestionNotFoundError(questionID)
	}

	start := time.Now()
	err = s.questionRepo.Pin(ctx, ownerID, questionID)
	s.metrics.RecordQueryLatency("pin", time.Since(start))
	if err != nil {
		return fmt.Errorf("ピン留めに失敗しました: %w", err)
	}

	s.metrics.RecordQuestionEvent(metrics.EventPinned)
	s.notifier.NotifyQuestionsChanged(ownerID, metrics.EventPinned)
	slog.Info("question pinned",
		slog.String("user_id", ownerID),
		slog.String("question_id", questionID),
	)
	return nil
}

// Unpin は配信者のピン留めを解除する。対象はセッションの配信者から決まり、未設定でも成功する。
func (s *Service) Unpin(ctx context.Context, ownerID string) error {
	start := time.Now()
	err := s.questionRepo.Unpin(ctx, ownerID)
	s.metrics.RecordQueryLatency("unpin", time.Since(start))
	if err != nil {
		return fmt.Errorf("ピン留め解除に失敗しました: %w", err)
	}

	s.metrics.RecordQuestionEvent(metrics.EventUnpinned)
	s.notifier.NotifyQuestionsChanged(ownerID, metrics.EventUnpinned)
	slog.Info("question unpinned", slog.String("user_id", ownerID))
	return nil
}

// Ask は視聴者からの質問を配信者宛てに登録する。
// 宛先はStreamerと同じ規則で解決する。
// 本文はタグを除去したプレーンテキストに正規化し、1〜400文字（ルーン数）でなければならない。
func (s *Service) Ask(ctx context.Context, ownerName, body string) (*model.Question, error) {
	owner, err := s.Streamer(ctx, ownerName)
	if err != nil {
		return nil, err
	}

	text := s.sanitizer.Sanitize(body)
	length := utf8.RuneCountInString(text)
	if length < model.QuestionBodyMinLength {
		return nil, model.NewInvalidQuestionError("本文が空です")
	}
	if length > model.QuestionBodyMaxLength {
		return nil, model.NewInvalidQuestionError(fmt.Sprintf("本文が長すぎます（%d文字）", length))
	}

	q := &model.Question{
		ID:        uuid.New().String(),
		UserID:    owner.ID,
		Body:      text,
		CreatedAt: time.Now().UTC(),
	}

	start := time.Now()
	err = s.questionRepo.Create(ctx, q)
	s.metrics.RecordQueryLatency("ask", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("質問の登録に失敗しました: %w", err)
	}

	s.metrics.RecordQuestionEvent(metrics.EventAsked)
	s.notifier.NotifyQuestionsChanged(owner.ID, metrics.EventAsked)
	slog.Info("question asked",
		slog.String("user_id", owner.ID),
		slog.String("question_id", q.ID),
	)
	return q, nil
}

// Streamer はURLの名前（ログイン名または表示名、大文字小文字を区別しない）から宛先の配信者を解決する。
// 見つからない場合はSTREAMER_NOT_FOUNDを返す。
func (s *Service) Streamer(ctx context.Context, name string) (*model.User, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, model.NewStreamerNotFoundError(name)
	}

	owner, err := s.userRepo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("配信者の取得に失敗しました: %w", err)
	}
	if owner == nil {
		return nil, model.NewStreamerNotFoundError(name)
	}
	return owner, nil
}

// Pinned は配信者がピン留め中の質問を返す。未設定の場合やownerIDがUUID形式でない場合はnilを返す。
func (s *Service) Pinned(ctx context.Context, ownerID string) (*model.Question, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, nil
	}
	q, err := s.questionRepo.FindPinned(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ピン留め中の質問の取得に失敗しました: %w", err)
	}
	return q, nil
}
