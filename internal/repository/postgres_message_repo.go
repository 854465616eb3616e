package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/ethiomarket/marketd/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// nullTimePtr はNULL許容のタイムスタンプを*time.Timeに変換する。
func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

// Create はメッセージを作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, message *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, listing_id, sender_id, receiver_id, content, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		message.ID, message.ListingID, message.SenderID, message.ReceiverID,
		message.Content, message.IsRead, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("メッセージの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
func (r *PostgresMessageRepo) FindByID(ctx context.Context, id string) (*model.Message, error) {
	message := &model.Message{}
	var readAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, listing_id, sender_id, receiver_id, content, is_read, read_at, created_at
		 FROM messages WHERE id = $1`,
		id,
	).Scan(
		&message.ID, &message.ListingID, &message.SenderID, &message.ReceiverID,
		&message.Content, &message.IsRead, &readAt, &message.CreatedAt,
	)
	message.ReadAt = nullTimePtr(readAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	return message, nil
}

// ListConversations はユーザーの会話一覧を(出品, 相手)単位で集約して返す。
// 各会話の最新メッセージと未読件数を含み、最新メッセージの新しい順に並ぶ。
func (r *PostgresMessageRepo) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	// DISTINCT ONで(出品, 相手)ごとの最新メッセージを1件ずつ取得する
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT ON (m.listing_id, CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END)
		        m.id, m.listing_id, m.sender_id, m.receiver_id, m.content, m.is_read, m.read_at, m.created_at,
		        CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS other_user_id,
		        l.title, u.name
		 FROM messages m
		 JOIN listings l ON l.id = m.listing_id
		 JOIN users u ON u.id = CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END
		 WHERE m.sender_id = $1 OR m.receiver_id = $1
		 ORDER BY m.listing_id,
		          CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END,
		          m.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("会話一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var conversations []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		var last model.Message
		var readAt sql.NullTime
		if err := rows.Scan(
			&last.ID, &last.ListingID, &last.SenderID, &last.ReceiverID,
			&last.Content, &last.IsRead, &readAt, &last.CreatedAt,
			&conv.OtherUserID, &conv.ListingTitle, &conv.OtherName,
		); err != nil {
			return nil, fmt.Errorf("会話行の読み取りに失敗しました: %w", err)
		}
		last.ReadAt = nullTimePtr(readAt)
		conv.ListingID = last.ListingID
		conv.LastMessage = last
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("会話一覧の走査に失敗しました: %w", err)
	}

	// 未読件数を(出品, 相手)ごとに集計してマージする
	unreadRows, err := r.db.QueryContext(ctx,
		`SELECT listing_id, sender_id, COUNT(*)
		 FROM messages
		 WHERE receiver_id = $1 AND is_read = false
		 GROUP BY listing_id, sender_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("未読件数の集計に失敗しました: %w", err)
	}
	defer unreadRows.Close()

	type convKey struct{ listingID, otherUserID string }
	unread := make(map[convKey]int)
	for unreadRows.Next() {
		var key convKey
		var count int
		if err := unreadRows.Scan(&key.listingID, &key.otherUserID, &count); err != nil {
			return nil, fmt.Errorf("未読集計行の読み取りに失敗しました: %w", err)
		}
		unread[key] = count
	}
	if err := unreadRows.Err(); err != nil {
		return nil, fmt.Errorf("未読集計結果の走査に失敗しました: %w", err)
	}

	for i := range conversations {
		conversations[i].UnreadCount = unread[convKey{conversations[i].ListingID, conversations[i].OtherUserID}]
	}

	// 最新メッセージの新しい順
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.CreatedAt.After(conversations[j].LastMessage.CreatedAt)
	})

	return conversations, nil
}

// ListThread は出品に紐づく2ユーザー間のメッセージをページングして返す。
// SQLでは新しい順にページを切り出し、ページ内は古い順に並べ替えて返す。
func (r *PostgresMessageRepo) ListThread(ctx context.Context, listingID, userA, userB string, page, limit int) ([]model.Message, error) {
	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, sender_id, receiver_id, content, is_read, read_at, created_at
		 FROM messages
		 WHERE listing_id = $1
		   AND ((sender_id = $2 AND receiver_id = $3) OR (sender_id = $3 AND receiver_id = $2))
		 ORDER BY created_at DESC
		 LIMIT $4 OFFSET $5`,
		listingID, userA, userB, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("メッセージスレッドの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var message model.Message
		var readAt sql.NullTime
		if err := rows.Scan(
			&message.ID, &message.ListingID, &message.SenderID, &message.ReceiverID,
			&message.Content, &message.IsRead, &readAt, &message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("メッセージ行の読み取りに失敗しました: %w", err)
		}
		message.ReadAt = nullTimePtr(readAt)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージスレッドの走査に失敗しました: %w", err)
	}

	// 古い順に並べ替える
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRead は指定IDのメッセージを既読にし、既読時刻を記録する。
// すでに既読の場合は最初の既読時刻を保持する。
func (r *PostgresMessageRepo) MarkRead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = true, read_at = COALESCE(read_at, now()) WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("既読フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// CountUnread はユーザー宛の未読メッセージ総数を返す。
func (r *PostgresMessageRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = false`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未読メッセージ数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
