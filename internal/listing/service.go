package listing

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
	"github.com/ethiomarket/marketd/internal/storage"
	"github.com/ethiomarket/marketd/internal/visibility"
)

const (
	maxTitleLength = 100
	maxShortLength = 200
	defaultLimit   = 20
	maxLimit       = 100
)

// CreateInput は出品作成の入力を表す。
// クライアントがステータスを指定しても無視され、常にpendingで作成される。
type CreateInput struct {
	Title            string
	ShortDescription string
	LongDescription  string
	Category         string
	Region           string
	ContactMethods   model.ContactMethods
	Images           [][]byte
}

// UpdateInput は出品更新の入力を表す。空フィールドは変更なしを意味する。
type UpdateInput struct {
	Title            string
	ShortDescription string
	LongDescription  string
	Category         string
	Region           string
	ContactMethods   *model.ContactMethods
	Status           string
	NewImages        [][]byte
}

// ListQuery は出品コレクションクエリの入力を表す。
type ListQuery struct {
	Category string
	Region   string
	Search   string
	Status   string
	Page     int
	Limit    int
}

// Service は出品のビジネスロジックを提供する。
type Service struct {
	listingRepo    repository.ListingRepository
	userRepo       repository.UserRepository
	blobs          storage.BlobStore
	sanitizer      *bluemonday.Policy
	lifetime       time.Duration
	placeholderURL string
}

// NewService はServiceを生成する。
func NewService(
	listingRepo repository.ListingRepository,
	userRepo repository.UserRepository,
	blobs storage.BlobStore,
	lifetime time.Duration,
	placeholderURL string,
) *Service {
	return &Service{
		listingRepo:    listingRepo,
		userRepo:       userRepo,
		blobs:          blobs,
		sanitizer:      bluemonday.StrictPolicy(),
		lifetime:       lifetime,
		placeholderURL: placeholderURL,
	}
}

// Create は新しい出品を作成する。ステータスは必ずpendingで開始する。
func (s *Service) Create(ctx context.Context, viewer visibility.Identity, input CreateInput) (*model.Listing, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUnauthorizedError()
	}

	title := strings.TrimSpace(s.sanitizer.Sanitize(input.Title))
	if title == "" {
		return nil, model.NewValidationError("タイトルは必須です")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, model.NewValidationError(fmt.Sprintf("タイトルは%d文字以内で指定してください", maxTitleLength))
	}

	short := strings.TrimSpace(s.sanitizer.Sanitize(input.ShortDescription))
	if short == "" {
		return nil, model.NewValidationError("概要説明は必須です")
	}
	if utf8.RuneCountInString(short) > maxShortLength {
		return nil, model.NewValidationError(fmt.Sprintf("概要説明は%d文字以内で指定してください", maxShortLength))
	}

	long := strings.TrimSpace(s.sanitizer.Sanitize(input.LongDescription))
	if long == "" {
		return nil, model.NewValidationError("詳細説明は必須です")
	}

	category := model.Category(input.Category)
	if !model.ValidCategories[category] {
		return nil, model.NewInvalidCategoryError(input.Category)
	}

	region := model.Region(input.Region)
	if !model.ValidRegions[region] {
		return nil, model.NewInvalidRegionError(input.Region)
	}

	images := s.uploadImages(ctx, input.Images)

	now := time.Now()
	listing := &model.Listing{
		ID:               uuid.New().String(),
		SellerID:         viewer.ID,
		Title:            title,
		ShortDescription: short,
		LongDescription:  long,
		Category:         category,
		Region:           region,
		Images:           images,
		ContactMethods:   input.ContactMethods,
		Status:           model.ListingStatusPending,
		ExpiresAt:        now.Add(s.lifetime),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	slog.Info("listing created",
		slog.String("listing_id", listing.ID),
		slog.String("seller_id", listing.SellerID),
		slog.String("category", string(listing.Category)),
	)

	return listing, nil
}

// Get は指定IDの出品を取得する。ステータスに関係なく返す。
func (s *Service) Get(ctx context.Context, id string) (*model.ListingWithSeller, error) {
	listing, err := s.listingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(id)
	}
	return listing, nil
}

// RecordView は閲覧数をベストエフォートで加算する。失敗しても呼び出しは成功する。
func (s *Service) RecordView(ctx context.Context, id string) {
	if err := s.listingRepo.IncrementViews(ctx, id); err != nil {
		slog.Warn("failed to increment view count",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// Update は出品を更新する。所有者本人と管理者のみ実行できる。
// ステータス変更は遷移表で検証される（管理者は任意の有効ステータスに変更可能）。
func (s *Service) Update(ctx context.Context, viewer visibility.Identity, id string, input UpdateInput) (*model.Listing, error) {
	current, err := s.listingRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if current == nil {
		return nil, model.NewListingNotFoundError(id)
	}

	if !visibility.CanModify(viewer, current.SellerID) {
		return nil, model.NewForbiddenError()
	}

	updated := current.Listing

	if input.Title != "" {
		title := strings.TrimSpace(s.sanitizer.Sanitize(input.Title))
		if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
			return nil, model.NewValidationError("タイトルの形式が正しくありません")
		}
		updated.Title = title
	}
	if input.ShortDescription != "" {
		short := strings.TrimSpace(s.sanitizer.Sanitize(input.ShortDescription))
		if short == "" || utf8.RuneCountInString(short) > maxShortLength {
			return nil, model.NewValidationError("概要説明の形式が正しくありません")
		}
		updated.ShortDescription = short
	}
	if input.LongDescription != "" {
		long := strings.TrimSpace(s.sanitizer.Sanitize(input.LongDescription))
		if long == "" {
			return nil, model.NewValidationError("詳細説明の形式が正しくありません")
		}
		updated.LongDescription = long
	}
	if input.Category != "" {
		category := model.Category(input.Category)
		if !model.ValidCategories[category] {
			return nil, model.NewInvalidCategoryError(input.Category)
		}
		updated.Category = category
	}
	if input.Region != "" {
		region := model.Region(input.Region)
		if !model.ValidRegions[region] {
			return nil, model.NewInvalidRegionError(input.Region)
		}
		updated.Region = region
	}
	if input.ContactMethods != nil {
		updated.ContactMethods = *input.ContactMethods
	}

	if input.Status != "" {
		status := model.ListingStatus(input.Status)
		if !model.ValidListingStatuses[status] {
			return nil, model.NewInvalidStatusError(input.Status)
		}
		// 管理者以外は遷移表に従う
		if !viewer.IsAdmin() {
			if err := Transition(updated.Status, status); err != nil {
				return nil, err
			}
		}
		updated.Status = status
	}

	if len(input.NewImages) > 0 {
		// 旧画像のブロブ削除はベストエフォート
		s.deleteBlobs(ctx, current.Images)
		updated.Images = s.uploadImages(ctx, input.NewImages)
	}

	updated.UpdatedAt = time.Now()
	if err := s.listingRepo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	slog.Info("listing updated",
		slog.String("listing_id", updated.ID),
		slog.String("updated_by", viewer.ID),
		slog.String("status", string(updated.Status)),
	)

	return &updated, nil
}

// Delete は出品を削除する。所有者本人と管理者のみ実行できる。
// ブロブストレージ上の画像削除はベストエフォートで行う。
func (s *Service) Delete(ctx context.Context, viewer visibility.Identity, id string) error {
	current, err := s.listingRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find listing: %w", err)
	}
	if current == nil {
		return model.NewListingNotFoundError(id)
	}

	if !visibility.CanModify(viewer, current.SellerID) {
		return model.NewForbiddenError()
	}

	s.deleteBlobs(ctx, current.Images)

	if err := s.listingRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	slog.Info("listing deleted",
		slog.String("listing_id", id),
		slog.String("deleted_by", viewer.ID),
	)

	return nil
}

// List はグローバルフィードを返す。ステータス指定がない場合はactiveのみ。
func (s *Service) List(ctx context.Context, viewer visibility.Identity, query ListQuery) (*model.ListingPage, error) {
	filter, err := s.buildFilter(viewer, "", query, false)
	if err != nil {
		return nil, err
	}

	page, err := s.listingRepo.List(ctx, *filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return page, nil
}

// ListBySeller は指定出品者の出品一覧を返す。
// 所有者本人・管理者がステータス指定なしで呼んだ場合のみ全ステータスを返す。
func (s *Service) ListBySeller(ctx context.Context, viewer visibility.Identity, sellerID string, query ListQuery) (*model.ListingPage, error) {
	seller, err := s.userRepo.FindByID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find seller: %w", err)
	}
	if seller == nil {
		return nil, model.NewUserNotFoundError(sellerID)
	}

	filter, err := s.buildFilter(viewer, sellerID, query, true)
	if err != nil {
		return nil, err
	}

	page, err := s.listingRepo.List(ctx, *filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller listings: %w", err)
	}
	return page, nil
}

// buildFilter はクエリを検証し、可視性ポリシーを適用したフィルタを構築する。
func (s *Service) buildFilter(viewer visibility.Identity, sellerID string, query ListQuery, sellerScoped bool) (*model.ListingFilter, error) {
	var requested model.ListingStatus
	if query.Status != "" {
		requested = model.ListingStatus(query.Status)
		if !model.ValidListingStatuses[requested] {
			return nil, model.NewInvalidStatusError(query.Status)
		}
	}

	var category model.Category
	if query.Category != "" {
		category = model.Category(query.Category)
		if !model.ValidCategories[category] {
			return nil, model.NewInvalidCategoryError(query.Category)
		}
	}

	var region model.Region
	if query.Region != "" {
		region = model.Region(query.Region)
		if !model.ValidRegions[region] {
			return nil, model.NewInvalidRegionError(query.Region)
		}
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return &model.ListingFilter{
		Category: category,
		Region:   region,
		Search:   strings.TrimSpace(query.Search),
		Statuses: visibility.ListingStatuses(viewer, sellerID, requested, sellerScoped),
		SellerID: sellerID,
		Page:     page,
		Limit:    limit,
	}, nil
}

// uploadImages は画像をブロブストレージにアップロードする。
// 個々のアップロード失敗はプレースホルダーURLにフォールバックする。
func (s *Service) uploadImages(ctx context.Context, images [][]byte) []model.ListingImage {
	var result []model.ListingImage
	for _, data := range images {
		if s.blobs == nil {
			result = append(result, model.ListingImage{URL: s.placeholderURL})
			continue
		}
		blob, err := s.blobs.Upload(ctx, data, "listings")
		if err != nil {
			slog.Warn("image upload failed, falling back to placeholder",
				slog.String("error", err.Error()),
			)
			result = append(result, model.ListingImage{URL: s.placeholderURL})
			continue
		}
		result = append(result, model.ListingImage{URL: blob.URL, PublicID: blob.PublicID})
	}
	return result
}

// deleteBlobs はブロブストレージ上の画像をベストエフォートで削除する。
func (s *Service) deleteBlobs(ctx context.Context, images []model.ListingImage) {
	if s.blobs == nil {
		return
	}
	for _, img := range images {
		if img.PublicID == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, img.PublicID); err != nil {
			slog.Warn("failed to delete blob",
				slog.String("public_id", img.PublicID),
				slog.String("error", err.Error()),
			)
		}
	}
}
