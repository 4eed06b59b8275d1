package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// internalErrorMessage は500応答の本文に使うメッセージ。
const internalErrorMessage = "内部サーバーエラーが発生しました"

// ErrorHandler は後続のハンドラがc.Errorsに積んだエラーをJSONレスポンスに変換する。
// ハンドラが中断時に設定したステータスを使い、未設定なら500を返す。
// 本文が書き込み済みの場合はログ出力のみ行う。
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil {
			return
		}
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.Request.URL.Path, last.Err)

		if c.Writer.Written() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": internalErrorMessage})
	}
}
