// Package httpclient は外部サービスのJSON APIを呼び出すHTTPクライアントを提供する。
//
// 外部の認証サービスに訪問者のCookieやAuthorizationヘッダーを転送して
// 問い合わせる用途で使用する。2xx以外の応答はStatusErrorとして返す。
package httpclient
