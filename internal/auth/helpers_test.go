package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSessionName はテスト用のセッションCookie名。
const testSessionName = "tickets_session"

// newTestStore はインメモリSQLiteを使うテスト用Storeを生成する。
func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	// :memory: は接続ごとに別DBになるため1接続に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("NewStore()でエラーが発生: %v", err)
	}
	return store, db
}

// seedLogin は開発用ユーザーでログインセッションを作成する。
func seedLogin(t *testing.T, store *Store) (User, Session) {
	t.Helper()

	user, sess, err := NewService(store, time.Hour).DevLogin(context.Background())
	if err != nil {
		t.Fatalf("DevLogin()でエラーが発生: %v", err)
	}
	return user, sess
}

// newSessionRouter はsessionsミドルウェアとログイン用の /login を持つルーターを生成する。
// /login はクエリのuidとsidをセッションCookieに保存する。
func newSessionRouter() *gin.Engine {
	router := gin.New()
	router.Use(sessions.Sessions(testSessionName, cookie.NewStore([]byte("test-session-secret"))))
	router.POST("/login", func(c *gin.Context) {
		if err := SaveLogin(c, c.Query("uid"), c.Query("sid")); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return router
}

// loginCookie は /login を呼び出してセッションCookieを取得する。
func loginCookie(t *testing.T, router *gin.Engine, userID, sessionID string) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/login?uid="+userID+"&sid="+sessionID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("ログインのステータスコード = %d, want %d", w.Code, http.StatusNoContent)
	}
	for _, ck := range w.Result().Cookies() {
		if ck.Name == testSessionName {
			return ck
		}
	}
	t.Fatal("セッションCookieが発行されなかった")
	return nil
}
