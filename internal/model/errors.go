package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, question, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeQuestionNotFound = "QUESTION_NOT_FOUND"
	ErrCodeInvalidQuestion  = "INVALID_QUESTION"
	ErrCodeStreamerNotFound = "STREAMER_NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewQuestionNotFoundError は質問未検出エラーを生成する。
// 他の配信者宛ての質問を指定した場合も同じエラーを返す。
func NewQuestionNotFoundError(questionID string) *APIError {
	return &APIError{
		Code:     ErrCodeQuestionNotFound,
		Message:  fmt.Sprintf("指定された質問が見つかりません: %s", questionID),
		Category: "question",
		Action:   "質問一覧を再読み込みしてください。",
	}
}

// NewInvalidQuestionError は質問本文が不正な場合のエラーを生成する。
func NewInvalidQuestionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuestion,
		Message:  fmt.Sprintf("質問を受け付けられませんでした: %s", reason),
		Category: "validation",
		Action:   fmt.Sprintf("%d文字以上%d文字以内で入力してください。", QuestionBodyMinLength, QuestionBodyMaxLength),
	}
}

// NewStreamerNotFoundError は宛先の配信者が存在しない場合のエラーを生成する。
func NewStreamerNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeStreamerNotFound,
		Message:  fmt.Sprintf("配信者が見つかりません: %s", name),
		Category: "question",
		Action:   "配信者から共有されたURLを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewForbiddenError はサインイン済みでも操作できない対象を指定した場合のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "ご自身のダッシュボードから操作してください。",
	}
}

// NewRateLimitError はリクエスト数が上限を超えた場合のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録し、利用者には返さない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
