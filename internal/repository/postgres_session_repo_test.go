package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/streamqa/internal/model"
)

func TestPostgresSessionRepo_CreateFindDelete(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewPostgresSessionRepo(db)
	ctx := context.Background()
	user := createTestUser(t, db, "theo")

	now := time.Now().UTC().Truncate(time.Microsecond)
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.FindByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got == nil || got.UserID != user.ID {
		t.Fatalf("FindByID = %+v, want session of %s", got, user.ID)
	}

	if err := repo.DeleteByID(ctx, session.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	got, err = repo.FindByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("FindByID after delete: %v", err)
	}
	if got != nil {
		t.Error("deleted session should not be found")
	}

	// 存在しないセッションの削除はエラーにしない
	if err := repo.DeleteByID(ctx, session.ID); err != nil {
		t.Errorf("DeleteByID twice: %v", err)
	}
}

// TestPostgresSessionRepo_FindByID_Expired は期限切れの行が残っていても未ログイン扱いになることを検証する。
func TestPostgresSessionRepo_FindByID_Expired(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewPostgresSessionRepo(db)
	ctx := context.Background()
	user := createTestUser(t, db, "expired")

	now := time.Now().UTC()
	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(-time.Minute),
		CreatedAt: now.Add(-time.Hour),
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.FindByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got != nil {
		t.Errorf("expired session should not be returned, got %+v", got)
	}
}

func TestPostgresSessionRepo_DeleteExpired(t *testing.T) {
	db := setupRepoDB(t)
	repo := NewPostgresSessionRepo(db)
	ctx := context.Background()
	user := createTestUser(t, db, "sweeper")

	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, expiresAt := range []time.Time{now.Add(-2 * time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		s := &model.Session{ID: uuid.New().String(), UserID: user.ID, ExpiresAt: expiresAt, CreatedAt: now.Add(-3 * time.Hour)}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	var remaining int
	if err := db.QueryRow(`SELECT count(*) FROM sessions`).Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}

	// 2回目は削除対象なし
	if n, err := repo.DeleteExpired(ctx, now); err != nil || n != 0 {
		t.Errorf("second DeleteExpired = (%d, %v), want (0, nil)", n, err)
	}
}
