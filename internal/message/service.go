// Package message は出品に紐づくユーザー間メッセージ機能を提供する。
package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/repository"
	"github.com/ethiomarket/marketd/internal/visibility"
)

const (
	maxContentLength   = 2000
	defaultThreadLimit = 50
	maxThreadLimit     = 100
)

// Service はメッセージのビジネスロジックを提供する。
type Service struct {
	messageRepo repository.MessageRepository
	listingRepo repository.ListingRepository
	userRepo    repository.UserRepository
	sanitizer   *bluemonday.Policy
}

// NewService はServiceを生成する。
func NewService(
	messageRepo repository.MessageRepository,
	listingRepo repository.ListingRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		messageRepo: messageRepo,
		listingRepo: listingRepo,
		userRepo:    userRepo,
		sanitizer:   bluemonday.StrictPolicy(),
	}
}

// Send は出品に紐づくメッセージを送信する。
func (s *Service) Send(ctx context.Context, sender visibility.Identity, listingID, receiverID, content string) (*model.Message, error) {
	if sender.IsAnonymous() {
		return nil, model.NewUnauthorizedError()
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if body == "" {
		return nil, model.NewValidationError("メッセージ本文は必須です")
	}
	if utf8.RuneCountInString(body) > maxContentLength {
		return nil, model.NewValidationError(fmt.Sprintf("メッセージは%d文字以内で指定してください", maxContentLength))
	}
	if visibility.SameUser(sender.ID, receiverID) {
		return nil, model.NewValidationError("自分自身にメッセージを送ることはできません")
	}

	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}

	receiver, err := s.userRepo.FindByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to find receiver: %w", err)
	}
	if receiver == nil {
		return nil, model.NewReceiverNotFoundError(receiverID)
	}

	msg := &model.Message{
		ID:         uuid.New().String(),
		ListingID:  listingID,
		SenderID:   sender.ID,
		ReceiverID: receiverID,
		Content:    body,
		IsRead:     false,
		CreatedAt:  time.Now(),
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	slog.Info("message sent",
		slog.String("message_id", msg.ID),
		slog.String("listing_id", listingID),
		slog.String("sender_id", sender.ID),
		slog.String("receiver_id", receiverID),
	)

	return msg, nil
}

// Conversations はユーザーの会話一覧を最終メッセージの新しい順で返す。
func (s *Service) Conversations(ctx context.Context, viewer visibility.Identity) ([]model.Conversation, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUnauthorizedError()
	}

	convs, err := s.messageRepo.ListConversations(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// Thread は出品と相手ユーザーで特定される会話のメッセージをページングして返す。
// 新しいページから切り出し、ページ内は古い順に並ぶ。
func (s *Service) Thread(ctx context.Context, viewer visibility.Identity, listingID, otherUserID string, page, limit int) ([]model.Message, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUnauthorizedError()
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultThreadLimit
	}
	if limit > maxThreadLimit {
		limit = maxThreadLimit
	}

	msgs, err := s.messageRepo.ListThread(ctx, listingID, viewer.ID, otherUserID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list thread: %w", err)
	}
	return msgs, nil
}

// MarkRead はメッセージを既読にする。受信者本人のみ実行できる。
func (s *Service) MarkRead(ctx context.Context, viewer visibility.Identity, messageID string) error {
	if viewer.IsAnonymous() {
		return model.NewUnauthorizedError()
	}

	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to find message: %w", err)
	}
	if msg == nil {
		return model.NewMessageNotFoundError(messageID)
	}

	if !visibility.SameUser(viewer.ID, msg.ReceiverID) {
		return model.NewForbiddenError()
	}

	if err := s.messageRepo.MarkRead(ctx, messageID); err != nil {
		return fmt.Errorf("failed to mark message as read: %w", err)
	}
	return nil
}

// UnreadCount は未読メッセージ数を返す。
func (s *Service) UnreadCount(ctx context.Context, viewer visibility.Identity) (int, error) {
	if viewer.IsAnonymous() {
		return 0, model.NewUnauthorizedError()
	}

	count, err := s.messageRepo.CountUnread(ctx, viewer.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}
