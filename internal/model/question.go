package model

import "time"

// Question は視聴者から配信者宛てに投稿された質問を表す。
// ピン留め状態は質問自体ではなくPinnedQuestionで別管理する。
type Question struct {
	ID        string
	UserID    string // 宛先の配信者
	Body      string
	CreatedAt time.Time
}

// PinnedQuestion は配信者ごとに高々1件のピン留め参照を表す。
type PinnedQuestion struct {
	UserID     string
	QuestionID string
	PinnedAt   time.Time
}

// 質問本文の長さ制限（ルーン数）
const (
	QuestionBodyMinLength = 1
	QuestionBodyMaxLength = 400
)
