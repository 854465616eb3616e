package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethiomarket/marketd/internal/middleware"
	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/visibility"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	Send(ctx context.Context, sender visibility.Identity, listingID, receiverID, content string) (*model.Message, error)
	Conversations(ctx context.Context, viewer visibility.Identity) ([]model.Conversation, error)
	Thread(ctx context.Context, viewer visibility.Identity, listingID, otherUserID string, page, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, viewer visibility.Identity, messageID string) error
	UnreadCount(ctx context.Context, viewer visibility.Identity) (int, error)
}

// MessageHandler はメッセージ機能のHTTPハンドラー。
type MessageHandler struct {
	service MessageServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface) *MessageHandler {
	return &MessageHandler{service: service}
}

// sendMessageRequest はメッセージ送信リクエストのボディ。
type sendMessageRequest struct {
	ListingID  string `json:"listingId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	ID         string     `json:"id"`
	ListingID  string     `json:"listingId"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Content    string     `json:"content"`
	IsRead     bool       `json:"isRead"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// conversationResponse は会話一覧のAPIレスポンス。
type conversationResponse struct {
	ListingID    string          `json:"listingId"`
	ListingTitle string          `json:"listingTitle"`
	OtherUserID  string          `json:"otherUserId"`
	OtherName    string          `json:"otherName"`
	LastMessage  messageResponse `json:"lastMessage"`
	UnreadCount  int             `json:"unreadCount"`
}

func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:         m.ID,
		ListingID:  m.ListingID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}
}

// Send はメッセージ送信を処理する。
// POST /api/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	msg, err := h.service.Send(r.Context(), identity, req.ListingID, req.ReceiverID, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toMessageResponse(msg))
}

// Conversations は会話一覧を返す。
// GET /api/messages/conversations
func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	convs, err := h.service.Conversations(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := make([]conversationResponse, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		data = append(data, conversationResponse{
			ListingID:    c.ListingID,
			ListingTitle: c.ListingTitle,
			OtherUserID:  c.OtherUserID,
			OtherName:    c.OtherName,
			LastMessage:  toMessageResponse(&c.LastMessage),
			UnreadCount:  c.UnreadCount,
		})
	}
	writeJSONResponse(w, http.StatusOK, data)
}

// Thread は出品と相手ユーザーで特定される会話のメッセージをページングして返す。
// ページ内は古い順。
// GET /api/messages/:listingID/:userID?page=&limit=
func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	listingID := chi.URLParam(r, "listingID")
	otherUserID := chi.URLParam(r, "userID")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	msgs, err := h.service.Thread(r.Context(), identity, listingID, otherUserID, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		data = append(data, toMessageResponse(&msgs[i]))
	}
	writeJSONResponse(w, http.StatusOK, data)
}

// MarkRead はメッセージを既読にする。受信者本人のみ実行できる。
// PUT /api/messages/:id/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	messageID := chi.URLParam(r, "id")

	if err := h.service.MarkRead(r.Context(), identity, messageID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnreadCount は未読メッセージ数を返す。
// GET /api/messages/unread/count
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	count, err := h.service.UnreadCount(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]int{"count": count})
}
