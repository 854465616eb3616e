// Package sms はSMS送信ゲートウェイ連携を提供する。
package sms

import "context"

// Sender はSMS送信のインターフェース。
type Sender interface {
	// Send は指定の電話番号へメッセージを送信する。
	Send(ctx context.Context, to, body string) error
}
