package auth

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/tickets/pkg/migration"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// ErrNotFound は対象のレコードが存在しない場合のエラー。
var ErrNotFound = errors.New("レコードが見つかりません")

// User はログイン可能なユーザー。
type User struct {
	ID             string
	Provider       string
	ProviderUserID string
	Email          string
	DisplayName    string
	CreatedAt      time.Time
	LastLoginAt    time.Time
}

// Session はログインセッション。
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	// RevokedAt はログアウト日時。ログアウトしていなければValid=false。
	RevokedAt sql.NullTime
}

// Active はnow時点でセッションが有効かどうかを返す。
func (s Session) Active(now time.Time) bool {
	return !s.RevokedAt.Valid && now.Before(s.ExpiresAt)
}

// Store はユーザーとログインセッションのSQLiteストア。
type Store struct {
	db *sql.DB
}

// NewStore はマイグレーションを適用して新しいStoreを生成する。
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateUser はユーザーを作成する。
func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, provider, provider_user_id, email, display_name, created_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Provider, u.ProviderUserID, u.Email, u.DisplayName, u.CreatedAt.UTC(), u.LastLoginAt.UTC())
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return nil
}

// GetUserByID はIDでユーザーを取得する。
func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_user_id, email, display_name, created_at, last_login_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByProvider はプロバイダとプロバイダ側IDでユーザーを取得する。
func (s *Store) GetUserByProvider(ctx context.Context, provider, providerUserID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, provider_user_id, email, display_name, created_at, last_login_at
		FROM users WHERE provider = ? AND provider_user_id = ?`, provider, providerUserID)
	return scanUser(row)
}

// UpdateLastLogin はユーザーの最終ログイン日時を更新する。
func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("最終ログイン日時の更新に失敗: %w", err)
	}
	return requireAffected(res)
}

// CreateSession はログインセッションを作成する。
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.CreatedAt.UTC(), sess.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("セッションの作成に失敗: %w", err)
	}
	return nil
}

// GetSession はIDでログインセッションを取得する。
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("セッションの取得に失敗: %w", err)
	}
	return sess, nil
}

// RevokeSession はログインセッションを失効させる。失効済みの場合は何もしない。
func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("セッションの失効に失敗: %w", err)
	}
	return requireAffected(res)
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Provider, &u.ProviderUserID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
