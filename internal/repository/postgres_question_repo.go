package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/streamqa/internal/model"
)

// PostgresQuestionRepo はPostgreSQLを使用した質問リポジトリ。
// ピン留め参照はpinned_questionsテーブル（user_idが主キー）で保持する。
type PostgresQuestionRepo struct {
	db *sql.DB
}

// NewPostgresQuestionRepo はPostgresQuestionRepoを生成する。
func NewPostgresQuestionRepo(db *sql.DB) *PostgresQuestionRepo {
	return &PostgresQuestionRepo{db: db}
}

// ListByUser は配信者宛ての質問を到着順で返す。
func (r *PostgresQuestionRepo) ListByUser(ctx context.Context, userID string) ([]model.Question, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, body, created_at
		 FROM questions
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := make([]model.Question, 0)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.UserID, &q.Body, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return questions, nil
}

// FindByID は指定IDの質問を取得する。見つからない場合はnilを返す。
func (r *PostgresQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	q := &model.Question{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, body, created_at FROM questions WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.UserID, &q.Body, &q.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find question: %w", err)
	}
	return q, nil
}

// Create は質問を作成する。
func (r *PostgresQuestionRepo) Create(ctx context.Context, q *model.Question) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO questions (id, user_id, body, created_at) VALUES ($1, $2, $3, $4)`,
		q.ID, q.UserID, q.Body, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// Pin は配信者のピン留め参照をUPSERTする。
// 同時に複数のピン操作が来た場合は最後の書き込みが勝つ。
func (r *PostgresQuestionRepo) Pin(ctx context.Context, userID, questionID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pinned_questions (user_id, question_id, pinned_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE
		 SET question_id = EXCLUDED.question_id, pinned_at = EXCLUDED.pinned_at`,
		userID, questionID,
	)
	if err != nil {
		return fmt.Errorf("failed to pin question: %w", err)
	}
	return nil
}

// Unpin は配信者のピン留め参照を削除する。
func (r *PostgresQuestionRepo) Unpin(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pinned_questions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to unpin question: %w", err)
	}
	return nil
}

// FindPinned は配信者がピン留め中の質問を返す。未設定の場合はnilを返す。
func (r *PostgresQuestionRepo) FindPinned(ctx context.Context, userID string) (*model.Question, error) {
	q := &model.Question{}
	err := r.db.QueryRowContext(ctx,
		`SELECT q.id, q.user_id, q.body, q.created_at
		 FROM pinned_questions p
		 JOIN questions q ON q.id = p.question_id
		 WHERE p.user_id = $1`,
		userID,
	).Scan(&q.ID, &q.UserID, &q.Body, &q.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pinned question: %w", err)
	}
	return q, nil
}

// compile-time interface check
var _ QuestionRepository = (*PostgresQuestionRepo)(nil)
