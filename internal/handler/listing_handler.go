package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ethiomarket/marketd/internal/listing"
	"github.com/ethiomarket/marketd/internal/middleware"
	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/visibility"
)

// ListingServiceInterface は出品ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Create(ctx context.Context, viewer visibility.Identity, input listing.CreateInput) (*model.Listing, error)
	Get(ctx context.Context, id string) (*model.ListingWithSeller, error)
	RecordView(ctx context.Context, id string)
	Update(ctx context.Context, viewer visibility.Identity, id string, input listing.UpdateInput) (*model.Listing, error)
	Delete(ctx context.Context, viewer visibility.Identity, id string) error
	List(ctx context.Context, viewer visibility.Identity, query listing.ListQuery) (*model.ListingPage, error)
	ListBySeller(ctx context.Context, viewer visibility.Identity, sellerID string, query listing.ListQuery) (*model.ListingPage, error)
}

// ListingHandler は出品管理のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// contactMethodsPayload は連絡手段のリクエスト/レスポンス表現。
type contactMethodsPayload struct {
	Phone    string `json:"phone,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Email    string `json:"email,omitempty"`
}

// createListingRequest は出品作成リクエストのボディ。
// imagesはbase64エンコードされた画像データの配列。
type createListingRequest struct {
	Title            string                `json:"title"`
	ShortDescription string                `json:"shortDescription"`
	LongDescription  string                `json:"longDescription"`
	Category         string                `json:"category"`
	Region           string                `json:"region"`
	ContactMethods   contactMethodsPayload `json:"contactMethods"`
	Images           []string              `json:"images"`
}

// updateListingRequest は出品更新リクエストのボディ。空フィールドは変更なし。
type updateListingRequest struct {
	Title            string                 `json:"title"`
	ShortDescription string                 `json:"shortDescription"`
	LongDescription  string                 `json:"longDescription"`
	Category         string                 `json:"category"`
	Region           string                 `json:"region"`
	ContactMethods   *contactMethodsPayload `json:"contactMethods"`
	Status           string                 `json:"status"`
	Images           []string               `json:"images"`
}

// listingImagePayload は出品画像のレスポンス表現。
type listingImagePayload struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
}

// listingResponse は出品情報のAPIレスポンス。
type listingResponse struct {
	ID               string                `json:"id"`
	SellerID         string                `json:"sellerId"`
	Title            string                `json:"title"`
	ShortDescription string                `json:"shortDescription"`
	LongDescription  string                `json:"longDescription"`
	Category         string                `json:"category"`
	Region           string                `json:"region"`
	Images           []listingImagePayload `json:"images"`
	ContactMethods   contactMethodsPayload `json:"contactMethods"`
	Status           string                `json:"status"`
	Views            int                   `json:"views"`
	Featured         bool                  `json:"featured"`
	ExpiresAt        time.Time             `json:"expiresAt"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// listingWithSellerResponse は出品者情報付きの出品レスポンス。
type listingWithSellerResponse struct {
	listingResponse
	SellerName   string  `json:"sellerName"`
	SellerPhone  string  `json:"sellerPhone,omitempty"`
	SellerRating float64 `json:"sellerRating"`
}

func toListingResponse(l *model.Listing) listingResponse {
	images := make([]listingImagePayload, 0, len(l.Images))
	for _, img := range l.Images {
		images = append(images, listingImagePayload{URL: img.URL, PublicID: img.PublicID})
	}
	return listingResponse{
		ID:               l.ID,
		SellerID:         l.SellerID,
		Title:            l.Title,
		ShortDescription: l.ShortDescription,
		LongDescription:  l.LongDescription,
		Category:         string(l.Category),
		Region:           string(l.Region),
		Images:           images,
		ContactMethods: contactMethodsPayload{
			Phone:    l.ContactMethods.Phone,
			WhatsApp: l.ContactMethods.WhatsApp,
			Telegram: l.ContactMethods.Telegram,
			Email:    l.ContactMethods.Email,
		},
		Status:    string(l.Status),
		Views:     l.Views,
		Featured:  l.Featured,
		ExpiresAt: l.ExpiresAt,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

func toListingWithSellerResponse(l *model.ListingWithSeller) listingWithSellerResponse {
	return listingWithSellerResponse{
		listingResponse: toListingResponse(&l.Listing),
		SellerName:      l.SellerName,
		SellerPhone:     l.SellerPhone,
		SellerRating:    l.SellerRating,
	}
}

func toListingPageResponse(page *model.ListingPage, pageNum, limit int) listResponse {
	data := make([]listingWithSellerResponse, 0, len(page.Listings))
	for i := range page.Listings {
		data = append(data, toListingWithSellerResponse(&page.Listings[i]))
	}
	return newListResponse(data, len(data), page.Total, pageNum, limit)
}

// decodeImages はbase64エンコードされた画像配列をデコードする。
func decodeImages(encoded []string) ([][]byte, error) {
	if len(encoded) == 0 {
		return nil, nil
	}
	images := make([][]byte, 0, len(encoded))
	for _, s := range encoded {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, model.NewValidationError("画像データの形式が正しくありません")
		}
		images = append(images, data)
	}
	return images, nil
}

func toContactMethods(p contactMethodsPayload) model.ContactMethods {
	return model.ContactMethods{
		Phone:    p.Phone,
		WhatsApp: p.WhatsApp,
		Telegram: p.Telegram,
		Email:    p.Email,
	}
}

// parseListQuery はクエリパラメータからListQueryを構築する。
func parseListQuery(r *http.Request) listing.ListQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return listing.ListQuery{
		Category: q.Get("category"),
		Region:   q.Get("region"),
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Page:     page,
		Limit:    limit,
	}
}

// Create は出品登録を処理する。
// POST /api/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())

	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	images, err := decodeImages(req.Images)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), identity, listing.CreateInput{
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		Category:         req.Category,
		Region:           req.Region,
		ContactMethods:   toContactMethods(req.ContactMethods),
		Images:           images,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toListingResponse(created))
}

// Get は出品詳細を取得する。ステータスに関係なく返す。
// GET /api/listings/:id
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toListingWithSellerResponse(found))
}

// RecordView は閲覧数を加算する。失敗しても204を返す。
// PUT /api/listings/:id/view
func (h *ListingHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.service.RecordView(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

// Update は出品を更新する。
// PUT /api/listings/:id
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req updateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	images, err := decodeImages(req.Images)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	input := listing.UpdateInput{
		Title:            req.Title,
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		Category:         req.Category,
		Region:           req.Region,
		Status:           req.Status,
		NewImages:        images,
	}
	if req.ContactMethods != nil {
		cm := toContactMethods(*req.ContactMethods)
		input.ContactMethods = &cm
	}

	updated, err := h.service.Update(r.Context(), identity, id, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toListingResponse(updated))
}

// Delete は出品を削除する。
// DELETE /api/listings/:id
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), identity, id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List はグローバルフィードを返す。
// GET /api/listings
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	query := parseListQuery(r)

	page, err := h.service.List(r.Context(), identity, query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	pageNum, limit := normalizePaging(query.Page, query.Limit)
	writeJSONResponse(w, http.StatusOK, toListingPageResponse(page, pageNum, limit))
}

// normalizePaging はレスポンス表示用のページ番号とリミットを正規化する。
// サービス層と同じ既定値を適用する。
func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
