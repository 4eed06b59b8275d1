package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 開発用ログインで使うユーザーの識別情報。
const (
	devProvider       = "dev"
	devProviderUserID = "dev-user"
	devEmail          = "dev@localhost"
	devDisplayName    = "開発ユーザー"
)

// Service はログインとログアウトを扱う。
type Service struct {
	store      *Store
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService は新しいServiceを生成する。
// sessionTTLはログインセッションの有効期間。
func NewService(store *Store, sessionTTL time.Duration) *Service {
	return &Service{
		store:      store,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// DevLogin は開発用ユーザーでログインし、新しいログインセッションを開始する。
// 開発用ユーザーが存在しなければ作成する。
func (s *Service) DevLogin(ctx context.Context) (User, Session, error) {
	now := s.now().UTC()

	user, err := s.store.GetUserByProvider(ctx, devProvider, devProviderUserID)
	switch {
	case errors.Is(err, ErrNotFound):
		user = User{
			ID:             uuid.New().String(),
			Provider:       devProvider,
			ProviderUserID: devProviderUserID,
			Email:          devEmail,
			DisplayName:    devDisplayName,
			CreatedAt:      now,
			LastLoginAt:    now,
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return User{}, Session{}, err
		}
	case err != nil:
		return User{}, Session{}, err
	default:
		if err := s.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
			return User{}, Session{}, err
		}
		user.LastLoginAt = now
	}

	sess := Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return User{}, Session{}, err
	}
	return user, sess, nil
}

// Logout はログインセッションを失効させる。
// セッションが存在しない場合もログアウト済みとして扱う。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := s.store.RevokeSession(ctx, sessionID, s.now())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("ログアウトに失敗: %w", err)
	}
	return nil
}
