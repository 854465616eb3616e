package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ethiomarket/marketd/internal/middleware"
	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/moderation"
)

// ModerationServiceInterface は管理ハンドラーが必要とするサービスインターフェース。
type ModerationServiceInterface interface {
	ListPending(ctx context.Context, page, limit int) (*model.ListingPage, error)
	Approve(ctx context.Context, adminID, listingID string) (*model.Listing, error)
	Reject(ctx context.Context, adminID, listingID, reason string) (*model.Listing, error)
	DeactivateUser(ctx context.Context, adminID, userID string) error
	ActivateUser(ctx context.Context, adminID, userID string) error
	ListUsers(ctx context.Context, page, limit int) ([]model.User, int, error)
	GetStats(ctx context.Context) (*moderation.Stats, error)
}

// AdminHandler は管理者操作のHTTPハンドラー。
type AdminHandler struct {
	service ModerationServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service ModerationServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// rejectRequest は出品却下リクエストのボディ。
type rejectRequest struct {
	Reason string `json:"reason"`
}

// parseAdminPaging はクエリパラメータからページとリミットを取得する。
func parseAdminPaging(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return normalizePaging(page, limit)
}

// ListPending は審査待ちの出品一覧を返す。
// GET /api/admin/listings/pending
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	page, limit := parseAdminPaging(r)

	result, err := h.service.ListPending(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toListingPageResponse(result, page, limit))
}

// Approve は審査待ちの出品を公開する。
// PUT /api/admin/listings/:id/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	listingID := chi.URLParam(r, "id")

	approved, err := h.service.Approve(r.Context(), identity.ID, listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toListingResponse(approved))
}

// Reject は審査待ちの出品を却下する。
// PUT /api/admin/listings/:id/reject
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	listingID := chi.URLParam(r, "id")

	// 理由は任意。ボディがなくても却下できる。
	var req rejectRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	rejected, err := h.service.Reject(r.Context(), identity.ID, listingID, req.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toListingResponse(rejected))
}

// ListUsers は登録ユーザーの一覧を返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := parseAdminPaging(r)

	users, total, err := h.service.ListUsers(r.Context(), page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := make([]userResponse, 0, len(users))
	for i := range users {
		data = append(data, toUserResponse(&users[i]))
	}
	writeJSONResponse(w, http.StatusOK, newListResponse(data, len(data), total, page, limit))
}

// DeactivateUser はユーザーを無効化し、activeな出品を一括で失効させる。
// PUT /api/admin/users/:id/deactivate
func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	userID := chi.URLParam(r, "id")

	if err := h.service.DeactivateUser(r.Context(), identity.ID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ActivateUser は無効化されたユーザーを再有効化する。
// PUT /api/admin/users/:id/activate
func (h *AdminHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	userID := chi.URLParam(r, "id")

	if err := h.service.ActivateUser(r.Context(), identity.ID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetStats はダッシュボード向けの統計を返す。
// GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, stats)
}
