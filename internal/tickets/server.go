package tickets

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/nao1215/tickets/internal/auth"
	"github.com/nao1215/tickets/internal/config"
	"github.com/nao1215/tickets/pkg/guard"
	"github.com/nao1215/tickets/pkg/middleware"
	_ "modernc.org/sqlite"
)

//go:embed templates/*.html
var templatesFS embed.FS

// sessionCookieName はセッションCookieの名前。
const sessionCookieName = "tickets_session"

// Server はチケットサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサービスの設定。
	cfg *config.Config
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はユーザーとログインセッションのストア。
	store *auth.Store
	// authService はログインとログアウトを扱う。
	authService *auth.Service
	// ticketsGuard はチケット購入入口ページのページガード。
	ticketsGuard *guard.PageGuard
	// identifiers は /api/v1/me 等でユーザーを特定する順序。
	identifiers []auth.Identifier
}

// NewServer は新しいチケットサーバーを生成する。
// SQLiteデータベースを開き、マイグレーションを適用する。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DatabasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := newServer(ctx, cfg, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func newServer(ctx context.Context, cfg *config.Config, sqlDB *sql.DB) (*Server, error) {
	store, err := auth.NewStore(ctx, sqlDB)
	if err != nil {
		return nil, err
	}

	checker, err := auth.NewChecker(cfg, store)
	if err != nil {
		return nil, err
	}
	ticketsGuard, err := guard.NewTicketsGuard(checker)
	if err != nil {
		return nil, fmt.Errorf("ページガードの生成に失敗: %w", err)
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("テンプレートの読み込みに失敗: %w", err)
	}

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))
	router.Use(sessions.Sessions(sessionCookieName, sessionStore))
	router.Use(middleware.ErrorHandler())
	router.SetHTMLTemplate(tmpl)

	s := &Server{
		router:       router,
		cfg:          cfg,
		db:           sqlDB,
		store:        store,
		authService:  auth.NewService(store, cfg.SessionTTL()),
		ticketsGuard: ticketsGuard,
		identifiers: []auth.Identifier{
			auth.NewSessionChecker(store),
			auth.NewTokenChecker(cfg.JWTSecret, store),
		},
	}
	s.setupRoutes()

	return s, nil
}

// Handler はサーバーのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	tickets := s.router.Group("/init-0/tickets")
	{
		// ログイン済みならカスタマイズ画面へリダイレクトする
		tickets.GET("", guard.Middleware(s.ticketsGuard), s.handleTicketsPage())
		tickets.GET("/customize", s.handleCustomizePage())
	}

	authGroup := s.router.Group("/auth")
	{
		authGroup.POST("/dev-token", s.handleDevToken())
		authGroup.POST("/logout", s.handleLogout())
	}

	api := s.router.Group("/api/v1")
	{
		api.GET("/me", s.handleGetCurrentUser())
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tickets"})
	})
}

// handleTicketsPage はチケット購入の入口ページを描画するハンドラを返す。
func (s *Server) handleTicketsPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "tickets.html", gin.H{
			"Title":         "init-0 チケット",
			"CustomizePath": guard.CustomizePath,
		})
	}
}

// handleCustomizePage はチケットのカスタマイズ画面を描画するハンドラを返す。
func (s *Server) handleCustomizePage() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.FirstIdentity(c, s.identifiers...)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.HTML(http.StatusOK, "customize.html", gin.H{
			"Title":  "チケットのカスタマイズ",
			"UserID": userID,
		})
	}
}

// handleDevToken は開発用ユーザーでログインし、JWTトークンを発行するハンドラを返す。
// セッションCookieにもログイン情報を保存する。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.DevLogin {
			c.JSON(http.StatusNotFound, gin.H{"error": "開発用ログインは無効です"})
			return
		}

		user, sess, err := s.authService.DevLogin(c.Request.Context())
		if err != nil {
			log.Printf("開発ユーザーのログインエラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			return
		}

		if err := auth.SaveLogin(c, user.ID, sess.ID); err != nil {
			log.Printf("セッション保存エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, user.ID, user.Email, sess.ID, s.cfg.JWTTTL)
		if err != nil {
			log.Printf("JWT生成エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"user_id":    user.ID,
			"session_id": sess.ID,
		})
	}
}

// handleLogout はログインセッションを失効させ、セッションCookieを削除するハンドラを返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := auth.ClearLogin(c)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if err := s.authService.Logout(c.Request.Context(), sessionID); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// handleGetCurrentUser は認証済みユーザーの情報を返すハンドラを返す。
// セッションCookie、Bearerトークンの順にユーザーを特定する。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.FirstIdentity(c, s.identifiers...)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ログインが必要です"})
			return
		}

		user, err := s.store.GetUserByID(c.Request.Context(), userID)
		if errors.Is(err, auth.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":           user.ID,
			"email":        user.Email,
			"display_name": user.DisplayName,
			"provider":     user.Provider,
		})
	}
}
