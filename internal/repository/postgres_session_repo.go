package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/streamqa/internal/model"
)

// PostgresSessionRepo はsessionsテーブルに対するSessionRepositoryの実装。
// 期限切れの行はFindByIDで見えなくなり、DeleteExpiredでまとめて物理削除される。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はログイン成功時のセッションを保存する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	const q = `INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, q, session.ID, session.UserID, session.ExpiresAt, session.CreatedAt); err != nil {
		return fmt.Errorf("create session for user %s: %w", session.UserID, err)
	}
	return nil
}

// FindByID は有効期限内のセッションを返す。存在しないか期限切れの場合は(nil, nil)。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	const q = `SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = $1 AND expires_at > now()`

	var s model.Session
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

// DeleteByID はログアウト時にセッションを削除する。存在しない場合もエラーにしない。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired はexpires_atがbefore以前のセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted sessions: %w", err)
	}
	return n, nil
}

var _ SessionRepository = (*PostgresSessionRepo)(nil)
