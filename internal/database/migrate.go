// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator はバイナリに埋め込んだSQLでスキーマを移行する。
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator はdatabaseURLのPostgreSQLに対するMigratorを生成する。
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up は未適用のマイグレーションを全て適用する。適用済みの場合は何もしない。
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Down は全てのマイグレーションを取り消す。
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// Steps はn件だけ進める。負の値は取り消しになる。
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return nil
	}
	if err := m.m.Steps(n); err != nil {
		return fmt.Errorf("failed to apply %d migration steps: %w", n, err)
	}
	return nil
}

// Version は現在のスキーマバージョンを返す。未適用の場合は0。
// 途中で失敗してdirtyになっている場合はエラーを返す。
func (m *Migrator) Version() (uint, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("database is in dirty state at version %d", version)
	}
	return version, nil
}

// Close はソースとDB接続を閉じる。
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}

// RunMigrations は全てのマイグレーションを適用し、適用後のバージョンを返す。
func RunMigrations(databaseURL string) (uint, error) {
	return MigrateSteps(databaseURL, 0)
}

// MigrateSteps はstepsが0なら全て適用し、それ以外はsteps件だけ進める（負なら取り消す）。
// 適用後のバージョンを返す。
func MigrateSteps(databaseURL string, steps int) (uint, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := m.Close(); err != nil {
			slog.Warn("failed to close migrator", slog.String("error", err.Error()))
		}
	}()

	if steps == 0 {
		err = m.Up()
	} else {
		err = m.Steps(steps)
	}
	if err != nil {
		return 0, err
	}
	return m.Version()
}
