// チケットサービスのエントリポイント。
// init-0のチケット購入ページを配信し、ログイン済みの訪問者を
// カスタマイズ画面へリダイレクトする。
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/appleboy/graceful"
	"github.com/nao1215/tickets/internal/config"
	"github.com/nao1215/tickets/internal/tickets"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := tickets.NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("チケットサーバーの初期化に失敗: %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	m := graceful.NewManager()

	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			log.Printf("チケットサービスを起動します: %s (AUTH_MODE=%s)", srv.Addr, cfg.AuthMode)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("チケットサービスの起動に失敗: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	// シャットダウンジョブは並行に実行されるため、HTTPサーバーの停止後にDBを閉じる
	m.AddShutdownJob(func() error {
		log.Println("チケットサービスを停止します")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		shutdownErr := srv.Shutdown(ctx)
		if shutdownErr != nil {
			log.Printf("HTTPサーバーの停止に失敗: %v", shutdownErr)
		}
		if err := server.Close(); err != nil {
			log.Printf("データベースのクローズに失敗: %v", err)
			return errors.Join(shutdownErr, err)
		}
		return shutdownErr
	})

	<-m.Done()
}
