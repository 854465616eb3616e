// Package model はドメインモデルを定義する。
package model

import "time"

// Message は出品に紐づく1対1のメッセージを表す。
// ReadAtは既読化された時刻で、未読の間はnil。
type Message struct {
	ID         string
	ListingID  string
	SenderID   string
	ReceiverID string
	Content    string
	IsRead     bool
	ReadAt     *time.Time
	CreatedAt  time.Time
}

// Conversation は(出品, 相手ユーザー)単位で集約された会話サマリを表す。
// LastMessageは最新メッセージ、UnreadCountは自分宛の未読件数。
type Conversation struct {
	ListingID    string
	ListingTitle string
	OtherUserID  string
	OtherName    string
	LastMessage  Message
	UnreadCount  int
}
