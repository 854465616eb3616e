package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethiomarket/marketd/internal/listing"
	"github.com/ethiomarket/marketd/internal/middleware"
	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/visibility"
)

// UserServiceInterface は公開プロフィール取得のサービスインターフェース。
type UserServiceInterface interface {
	GetPublicProfile(ctx context.Context, userID string) (*model.User, error)
}

// SellerListingsInterface は出品者別の出品一覧取得インターフェース。
type SellerListingsInterface interface {
	ListBySeller(ctx context.Context, viewer visibility.Identity, sellerID string, query listing.ListQuery) (*model.ListingPage, error)
}

// UserHandler は公開ユーザー情報のHTTPハンドラー。
type UserHandler struct {
	users    UserServiceInterface
	listings SellerListingsInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserServiceInterface, listings SellerListingsInterface) *UserHandler {
	return &UserHandler{users: users, listings: listings}
}

// publicProfileResponse は公開プロフィールのAPIレスポンス。
// メールアドレスとアカウント状態は含まない。
type publicProfileResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	IsVerified   bool      `json:"isVerified"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	Rating       float64   `json:"rating"`
	TotalRatings int       `json:"totalRatings"`
	CreatedAt    time.Time `json:"createdAt"`
}

// GetProfile は公開プロフィールを取得する。
// GET /api/users/:id
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	user, err := h.users.GetPublicProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, publicProfileResponse{
		ID:           user.ID,
		Name:         user.Name,
		Phone:        user.Phone,
		IsVerified:   user.IsVerified,
		AvatarURL:    user.AvatarURL,
		Rating:       user.Rating,
		TotalRatings: user.TotalRatings,
		CreatedAt:    user.CreatedAt,
	})
}

// ListListings は指定ユーザーの出品一覧を返す。
// 所有者本人・管理者のみステータス指定なしで全ステータスが見える。
// GET /api/users/:id/listings
func (h *UserHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	sellerID := chi.URLParam(r, "id")
	query := parseListQuery(r)

	page, err := h.listings.ListBySeller(r.Context(), identity, sellerID, query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	pageNum, limit := normalizePaging(query.Page, query.Limit)
	writeJSONResponse(w, http.StatusOK, toListingPageResponse(page, pageNum, limit))
}
