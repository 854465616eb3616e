// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/ethiomarket/marketd/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByPhone は電話番号でユーザーを検索する。見つからない場合はnilを返す。
	FindByPhone(ctx context.Context, phone string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーのプロフィール情報を更新する。
	Update(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateAvatar はアバターURLを更新する。
	UpdateAvatar(ctx context.Context, id, avatarURL string) error

	// MarkVerified は指定電話番号のユーザーを認証済みにする。
	MarkVerified(ctx context.Context, phone string) error

	// DeactivateWithListings はユーザーの無効化と所有する全出品の期限切れ化を
	// 同一トランザクションで実行する。影響を受けた出品数を返す。
	DeactivateWithListings(ctx context.Context, userID string) (int64, error)

	// Activate は無効化されたユーザーを再有効化する。出品は復元しない。
	Activate(ctx context.Context, userID string) error

	// List はユーザー一覧をページネーション付きで取得する。総件数も返す。
	List(ctx context.Context, page, limit int) ([]model.User, int, error)

	// CountUsers は総ユーザー数と有効ユーザー数を返す。
	CountUsers(ctx context.Context) (total, active int, err error)
}

// ListingRepository は出品データの永続化インターフェース。
type ListingRepository interface {
	// FindByID は指定IDの出品を出品者情報とJOINして取得する。
	// ステータスに関係なく取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ListingWithSeller, error)

	// Create は出品と添付画像を同一トランザクションで作成する。
	Create(ctx context.Context, listing *model.Listing) error

	// Update は出品を更新し、添付画像を同一トランザクションで置き換える。
	Update(ctx context.Context, listing *model.Listing) error

	// Delete は指定IDの出品を削除する。画像レコードはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// UpdateStatus は出品のステータスのみを更新する。
	UpdateStatus(ctx context.Context, id string, status model.ListingStatus) error

	// List はフィルタ条件に一致する出品をcreated_at降順で取得する。
	// filter.Statusesが空の場合はステータス条件を付けない。
	List(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error)

	// IncrementViews は閲覧数を1増やす。
	IncrementViews(ctx context.Context, id string) error

	// ExpireOverdue は期限切れのactive出品を一括でexpiredに更新する。
	// 影響を受けた出品数を返す。
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	// CountByStatus はステータスごとの出品数を返す。
	CountByStatus(ctx context.Context) (map[model.ListingStatus]int, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, message *model.Message) error

	// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Message, error)

	// ListConversations はユーザーの会話一覧を(出品, 相手)単位で集約して返す。
	// 各会話の最新メッセージと未読件数を含み、最新メッセージの新しい順に並ぶ。
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)

	// ListThread は出品に紐づく2ユーザー間のメッセージをページングして返す。
	// 新しい順にページを切り出し、ページ内はcreated_at昇順で返す。
	ListThread(ctx context.Context, listingID, userA, userB string, page, limit int) ([]model.Message, error)

	// MarkRead は指定IDのメッセージを既読にする。
	MarkRead(ctx context.Context, id string) error

	// CountUnread はユーザー宛の未読メッセージ総数を返す。
	CountUnread(ctx context.Context, userID string) (int, error)
}

// OTPEntry は保存中の認証コードと試行回数を表す。
type OTPEntry struct {
	Code     string
	Attempts int
}

// OTPRepository はSMS認証コードの一時保存インターフェース。
type OTPRepository interface {
	// Save は認証コードをTTL付きで保存する。既存のコードは上書きされる。
	Save(ctx context.Context, phone, code string, ttl time.Duration) error

	// Find は指定電話番号の認証コードを取得する。期限切れまたは未保存の場合はnilを返す。
	Find(ctx context.Context, phone string) (*OTPEntry, error)

	// IncrementAttempts は試行回数を1増やし、更新後の回数を返す。
	IncrementAttempts(ctx context.Context, phone string) (int, error)

	// Delete は認証コードを削除する。
	Delete(ctx context.Context, phone string) error
}
