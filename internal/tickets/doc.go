// Package tickets はinit-0のチケット購入ページを配信するWebサービスの内部実装を提供する。
//
// チケット購入の入口ページはページガードで保護され、ログイン済みの訪問者は
// カスタマイズ画面へ307でリダイレクトされる。開発用ログイン、ログアウト、
// 現在のユーザーを返すAPIも提供する。
package tickets
