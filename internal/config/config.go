// Package config はチケットサービスの設定を環境変数から読み込む。
//
// 起動ディレクトリに .env ファイルがあれば先に読み込み、
// 既に設定済みの環境変数は上書きしない。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 認証状態の判定方式。
const (
	// AuthModeSession はセッションCookieとBearerトークンで判定する。
	AuthModeSession = "session"
	// AuthModeRemote は外部の認証サービスに問い合わせて判定する。
	AuthModeRemote = "remote"
)

// ErrInvalidConfig は設定値が不正な場合のエラー。
var ErrInvalidConfig = errors.New("設定値が不正です")

// Config はチケットサービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string

	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// JWTTTL は発行するJWTの有効期間。
	JWTTTL time.Duration

	// SessionSecret はセッションCookieの署名鍵。
	SessionSecret string
	// SessionMaxAge はセッションCookieとログインセッションの有効期間（秒）。
	SessionMaxAge int
	// SecureCookie はCookieにSecure属性を付けるかどうか。
	SecureCookie bool

	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string

	// AuthMode は認証状態の判定方式（session または remote）。
	AuthMode string
	// AuthServiceURL はremote方式で問い合わせる認証サービスのベースURL。
	AuthServiceURL string
	// AuthServiceTimeout は認証サービスへの問い合わせのタイムアウト。
	AuthServiceTimeout time.Duration

	// DevLogin は開発用ログインエンドポイントを有効にするかどうか。
	DevLogin bool
}

// Load は .env と環境変数から設定を読み込んで検証する。
func Load() (*Config, error) {
	// .env が無い場合は環境変数のみを使う
	_ = godotenv.Load()

	jwtTTL, err := getEnvDuration("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	authTimeout, err := getEnvDuration("AUTH_SERVICE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	maxAge, err := getEnvInt("SESSION_MAX_AGE", 86400)
	if err != nil {
		return nil, err
	}
	secure, err := getEnvBool("SECURE_COOKIE", false)
	if err != nil {
		return nil, err
	}
	devLogin, err := getEnvBool("DEV_LOGIN", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnvOr("PORT", "8080"),
		DatabasePath:       getEnvOr("DATABASE_PATH", "/data/tickets.db"),
		JWTSecret:          getEnvOr("JWT_SECRET", "dev-secret-key"),
		JWTTTL:             jwtTTL,
		SessionSecret:      getEnvOr("SESSION_SECRET", "dev-session-secret"),
		SessionMaxAge:      maxAge,
		SecureCookie:       secure,
		FrontendURL:        getEnvOr("FRONTEND_URL", "http://localhost:3000"),
		AuthMode:           strings.ToLower(getEnvOr("AUTH_MODE", AuthModeSession)),
		AuthServiceURL:     strings.TrimRight(os.Getenv("AUTH_SERVICE_URL"), "/"),
		AuthServiceTimeout: authTimeout,
		DevLogin:           devLogin,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeSession:
	case AuthModeRemote:
		if c.AuthServiceURL == "" {
			return fmt.Errorf("%w: AUTH_MODE=remote にはAUTH_SERVICE_URLが必要です", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: 不明なAUTH_MODEです: %q", ErrInvalidConfig, c.AuthMode)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("%w: JWT_TTLは正の値である必要があります", ErrInvalidConfig)
	}
	if c.AuthServiceTimeout <= 0 {
		return fmt.Errorf("%w: AUTH_SERVICE_TIMEOUTは正の値である必要があります", ErrInvalidConfig)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("%w: SESSION_MAX_AGEは正の値である必要があります", ErrInvalidConfig)
	}
	if c.JWTSecret == "" || c.SessionSecret == "" {
		return fmt.Errorf("%w: JWT_SECRETとSESSION_SECRETは空にできません", ErrInvalidConfig)
	}
	return nil
}

// SessionTTL はログインセッションの有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, key, v, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, key, v, err)
	}
	return b, nil
}
