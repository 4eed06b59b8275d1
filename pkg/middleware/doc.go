// Package middleware はチケットサービスのGin HTTPハンドラで使用する共通ミドルウェアを提供する。
//
// JWTの発行と検証、パニックリカバリ、CORS設定、c.Errorsに積まれた
// エラーのレスポンス変換を含む。
package middleware
