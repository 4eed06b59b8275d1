// Package guard はページ読み込み時に認証状態を確認し、
// ログイン済みの訪問者を別ページへリダイレクトするガードを提供する。
//
// 認証状態の判定は外部のCheckerに委譲する。判定に失敗した場合は
// 未ログインとして扱わず、エラーをそのままホスト側のエラー処理に渡す。
package guard
