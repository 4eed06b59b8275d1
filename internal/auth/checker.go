package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nao1215/tickets/internal/config"
	"github.com/nao1215/tickets/pkg/guard"
	"github.com/nao1215/tickets/pkg/httpclient"
	"github.com/nao1215/tickets/pkg/middleware"
)

// セッションCookieに保存するキー。
const (
	SessionKeyUserID    = "user_id"
	SessionKeySessionID = "session_id"
)

// mePath は認証サービスで現在のユーザーを返すエンドポイント。
const mePath = "/api/v1/me"

// ErrSessionsNotInstalled はsessionsミドルウェアが未設定の場合のエラー。
var ErrSessionsNotInstalled = errors.New("sessionsミドルウェアが設定されていません")

// Identifier はリクエストから認証済みユーザーのIDを特定する。
// 未認証の場合は空文字列とnilを返す。
type Identifier interface {
	Identify(c *gin.Context) (string, error)
}

// SessionChecker はセッションCookieとログインセッションの状態で認証を判定する。
type SessionChecker struct {
	store *Store
	now   func() time.Time
}

// NewSessionChecker は新しいSessionCheckerを生成する。
func NewSessionChecker(store *Store) *SessionChecker {
	return &SessionChecker{store: store, now: time.Now}
}

// Identify はセッションCookieに保存されたユーザーIDを、ログインセッションが有効な場合に返す。
func (s *SessionChecker) Identify(c *gin.Context) (string, error) {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return "", ErrSessionsNotInstalled
	}
	session := sessions.Default(c)
	userID, _ := session.Get(SessionKeyUserID).(string)
	sessionID, _ := session.Get(SessionKeySessionID).(string)
	if userID == "" || sessionID == "" {
		return "", nil
	}
	return activeSessionUser(c, s.store, sessionID, userID, s.now())
}

// IsLoggedIn はguard.Checkerを実装する。
func (s *SessionChecker) IsLoggedIn(c *gin.Context) (bool, error) {
	return isIdentified(c, s)
}

// TokenChecker はAuthorizationヘッダーのBearerトークンで認証を判定する。
// トークンにログインセッションIDが含まれる場合はセッションの失効も確認する。
type TokenChecker struct {
	secret string
	store  *Store
	now    func() time.Time
}

// NewTokenChecker は新しいTokenCheckerを生成する。storeがnilの場合は署名と期限のみ検証する。
func NewTokenChecker(secret string, store *Store) *TokenChecker {
	return &TokenChecker{secret: secret, store: store, now: time.Now}
}

// Identify は有効なBearerトークンのユーザーIDを返す。
// トークンが無い、または無効な場合は未認証として扱う。
func (t *TokenChecker) Identify(c *gin.Context) (string, error) {
	tokenString, err := middleware.BearerToken(c.Request)
	if err != nil {
		return "", nil
	}
	claims, err := middleware.ParseJWT(t.secret, tokenString)
	if err != nil {
		return "", nil
	}
	if t.store == nil || claims.SessionID == "" {
		return claims.UserID, nil
	}
	return activeSessionUser(c, t.store, claims.SessionID, claims.UserID, t.now())
}

// IsLoggedIn はguard.Checkerを実装する。
func (t *TokenChecker) IsLoggedIn(c *gin.Context) (bool, error) {
	return isIdentified(c, t)
}

// RemoteChecker は外部の認証サービスに訪問者の資格情報を転送して認証を判定する。
type RemoteChecker struct {
	client *httpclient.Client
}

// NewRemoteChecker は新しいRemoteCheckerを生成する。
func NewRemoteChecker(client *httpclient.Client) *RemoteChecker {
	return &RemoteChecker{client: client}
}

// IsLoggedIn は認証サービスが2xxを返せば認証済み、401/403なら未認証とする。
// それ以外の応答や通信エラーは判定の失敗としてエラーを返す。
func (r *RemoteChecker) IsLoggedIn(c *gin.Context) (bool, error) {
	ctx := httpclient.WithCredentials(c.Request.Context(), httpclient.Credentials{
		Cookie:        c.GetHeader("Cookie"),
		Authorization: c.GetHeader("Authorization"),
	})

	err := r.client.GetJSON(ctx, mePath, nil)
	if err == nil {
		return true, nil
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) &&
		(statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
		return false, nil
	}
	return false, fmt.Errorf("認証サービスへの問い合わせに失敗: %w", err)
}

// AnyOf はいずれかのCheckerが認証済みと判定すればtrueを返すCheckerを返す。
// 先頭から順に評価し、エラーが発生した時点でそのエラーを返す。
func AnyOf(checkers ...guard.Checker) guard.Checker {
	return guard.CheckerFunc(func(c *gin.Context) (bool, error) {
		for _, checker := range checkers {
			ok, err := checker.IsLoggedIn(c)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// FirstIdentity はいずれかのIdentifierで特定できた最初のユーザーIDを返す。
func FirstIdentity(c *gin.Context, identifiers ...Identifier) (string, error) {
	for _, id := range identifiers {
		userID, err := id.Identify(c)
		if err != nil {
			return "", err
		}
		if userID != "" {
			return userID, nil
		}
	}
	return "", nil
}

// NewChecker は設定の認証方式に応じたguard.Checkerを生成する。
func NewChecker(cfg *config.Config, store *Store) (guard.Checker, error) {
	switch cfg.AuthMode {
	case config.AuthModeSession:
		return AnyOf(NewSessionChecker(store), NewTokenChecker(cfg.JWTSecret, store)), nil
	case config.AuthModeRemote:
		return NewRemoteChecker(httpclient.New(cfg.AuthServiceURL, cfg.AuthServiceTimeout)), nil
	default:
		return nil, fmt.Errorf("%w: 不明なAUTH_MODEです: %q", config.ErrInvalidConfig, cfg.AuthMode)
	}
}

// SaveLogin はセッションCookieにログイン情報を保存する。
func SaveLogin(c *gin.Context, userID, sessionID string) error {
	session := sessions.Default(c)
	session.Set(SessionKeyUserID, userID)
	session.Set(SessionKeySessionID, sessionID)
	if err := session.Save(); err != nil {
		return fmt.Errorf("セッションCookieの保存に失敗: %w", err)
	}
	return nil
}

// ClearLogin はセッションCookieからログイン情報を削除し、削除前のログインセッションIDを返す。
func ClearLogin(c *gin.Context) (string, error) {
	session := sessions.Default(c)
	sessionID, _ := session.Get(SessionKeySessionID).(string)
	session.Clear()
	if err := session.Save(); err != nil {
		return "", fmt.Errorf("セッションCookieの削除に失敗: %w", err)
	}
	return sessionID, nil
}

func isIdentified(c *gin.Context, id Identifier) (bool, error) {
	userID, err := id.Identify(c)
	if err != nil {
		return false, err
	}
	return userID != "", nil
}

// activeSessionUser はログインセッションが有効でuserIDの持ち物であればuserIDを返す。
func activeSessionUser(c *gin.Context, store *Store, sessionID, userID string, now time.Time) (string, error) {
	sess, err := store.GetSession(c.Request.Context(), sessionID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if sess.UserID != userID || !sess.Active(now) {
		return "", nil
	}
	return userID, nil
}
