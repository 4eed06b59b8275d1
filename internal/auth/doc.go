// Package auth はチケットサービスの訪問者が認証済みかどうかを判定する。
//
// ユーザーとログインセッションをSQLiteに保存し、セッションCookie、
// Bearerトークン、外部の認証サービスのいずれかで認証状態を判定する
// guard.Checker の実装を提供する。
package auth
