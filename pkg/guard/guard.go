package guard

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CustomizePath はチケット購入フローのカスタマイズ画面のパス。
const CustomizePath = "/init-0/tickets/customize"

// ErrInvalidRedirect はリダイレクト設定が不正な場合のエラー。
var ErrInvalidRedirect = errors.New("リダイレクト設定が不正です")

// Checker は現在の訪問者が認証済みかどうかを判定する。
// 判定のために待機する場合はcのコンテキストのキャンセルに従うこと。
type Checker interface {
	IsLoggedIn(c *gin.Context) (bool, error)
}

// CheckerFunc は関数をCheckerとして扱うためのアダプタ。
type CheckerFunc func(c *gin.Context) (bool, error)

// IsLoggedIn はf(c)を呼び出す。
func (f CheckerFunc) IsLoggedIn(c *gin.Context) (bool, error) {
	return f(c)
}

// Redirect はホストに渡すリダイレクト指示。
type Redirect struct {
	// Status はHTTPステータスコード（3xx）。
	Status int
	// Location はリダイレクト先のパス。
	Location string
}

// PageGuard はログイン済みの訪問者をリダイレクトするページガード。
// 認証状態を変更しないため、同じ認証状態に対しては常に同じ結果を返す。
type PageGuard struct {
	checker  Checker
	redirect Redirect
}

// New は新しいPageGuardを生成する。
// statusは3xx、locationは "/" で始まる絶対パスである必要がある。
func New(checker Checker, status int, location string) (*PageGuard, error) {
	if checker == nil {
		return nil, fmt.Errorf("%w: checkerがnilです", ErrInvalidRedirect)
	}
	if status < http.StatusMultipleChoices || status > http.StatusPermanentRedirect {
		return nil, fmt.Errorf("%w: status=%d", ErrInvalidRedirect, status)
	}
	if !strings.HasPrefix(location, "/") || strings.HasPrefix(location, "//") {
		return nil, fmt.Errorf("%w: location=%q", ErrInvalidRedirect, location)
	}
	return &PageGuard{
		checker:  checker,
		redirect: Redirect{Status: status, Location: location},
	}, nil
}

// NewTicketsGuard はチケット購入入口ページ用のガードを生成する。
// ログイン済みなら307でカスタマイズ画面へ遷移させる。
func NewTicketsGuard(checker Checker) (*PageGuard, error) {
	return New(checker, http.StatusTemporaryRedirect, CustomizePath)
}

// Load は認証状態を確認し、ログイン済みであればリダイレクト指示を返す。
// 未ログインの場合は nil, nil を返し、通常のページ描画を続行させる。
// Checkerのエラーはラップせずにそのまま返す。
func (g *PageGuard) Load(c *gin.Context) (*Redirect, error) {
	authenticated, err := g.checker.IsLoggedIn(c)
	if err != nil {
		return nil, err
	}
	if !authenticated {
		return nil, nil
	}
	r := g.redirect
	return &r, nil
}

// Middleware はPageGuardをページ読み込みフックとして実行するGinミドルウェアを返す。
// リダイレクト時と認証確認の失敗時は後続のハンドラを実行しない。
// 失敗はc.Errorsに積み、描画はErrorHandler等のホスト側に任せる。
func Middleware(g *PageGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		redirect, err := g.Load(c)
		if err != nil {
			_ = c.Error(err)
			c.Status(http.StatusInternalServerError)
			c.Abort()
			return
		}
		if redirect != nil {
			// http.Redirect は本文を書き込むため、Locationヘッダーのみを返す。
			c.Header("Location", redirect.Location)
			c.AbortWithStatus(redirect.Status)
			return
		}
		c.Next()
	}
}
