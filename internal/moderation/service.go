// Package moderation は管理者による出品審査とユーザー管理を提供する。
package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethiomarket/marketd/internal/listing"
	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/repository"
)

// Stats は管理ダッシュボード向けの集計値を表す。
type Stats struct {
	TotalUsers      int                         `json:"totalUsers"`
	ActiveUsers     int                         `json:"activeUsers"`
	ListingsByState map[model.ListingStatus]int `json:"listingsByState"`
}

// Service は管理者操作のビジネスロジックを提供する。
type Service struct {
	listingRepo repository.ListingRepository
	userRepo    repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(listingRepo repository.ListingRepository, userRepo repository.UserRepository) *Service {
	return &Service{
		listingRepo: listingRepo,
		userRepo:    userRepo,
	}
}

// ListPending は審査待ちの出品一覧を返す。
func (s *Service) ListPending(ctx context.Context, page, limit int) (*model.ListingPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	result, err := s.listingRepo.List(ctx, model.ListingFilter{
		Statuses: []model.ListingStatus{model.ListingStatusPending},
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending listings: %w", err)
	}
	return result, nil
}

// Approve は審査待ちの出品を公開する。pending以外からの承認はエラーになる。
func (s *Service) Approve(ctx context.Context, adminID, listingID string) (*model.Listing, error) {
	return s.review(ctx, adminID, listingID, model.ListingStatusActive, "")
}

// Reject は審査待ちの出品を却下する。理由は監査ログに記録される。
func (s *Service) Reject(ctx context.Context, adminID, listingID, reason string) (*model.Listing, error) {
	return s.review(ctx, adminID, listingID, model.ListingStatusRejected, reason)
}

func (s *Service) review(ctx context.Context, adminID, listingID string, to model.ListingStatus, reason string) (*model.Listing, error) {
	current, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if current == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}

	// pending以外からの審査操作は拒否し、ステータスは変更しない
	if current.Status != model.ListingStatusPending {
		return nil, model.NewInvalidStateTransitionError(current.Status, to)
	}
	if err := listing.Transition(current.Status, to); err != nil {
		return nil, err
	}

	if err := s.listingRepo.UpdateStatus(ctx, listingID, to); err != nil {
		return nil, fmt.Errorf("failed to update listing status: %w", err)
	}

	attrs := []any{
		slog.String("listing_id", listingID),
		slog.String("admin_id", adminID),
		slog.String("from_status", string(current.Status)),
		slog.String("to_status", string(to)),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}
	slog.Info("listing reviewed", attrs...)

	updated := current.Listing
	updated.Status = to
	return &updated, nil
}

// DeactivateUser はユーザーを無効化し、そのユーザーの全出品を
// まとめてexpiredに変更する。単一トランザクションで実行される。
func (s *Service) DeactivateUser(ctx context.Context, adminID, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}
	if user.Role == model.RoleAdmin {
		return model.NewForbiddenError()
	}

	affected, err := s.userRepo.DeactivateWithListings(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	slog.Info("user deactivated",
		slog.String("user_id", userID),
		slog.String("admin_id", adminID),
		slog.Int64("listings_expired", affected),
	)

	return nil
}

// ActivateUser は無効化されたユーザーを再度有効にする。出品は復元されない。
func (s *Service) ActivateUser(ctx context.Context, adminID, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}

	if err := s.userRepo.Activate(ctx, userID); err != nil {
		return fmt.Errorf("failed to activate user: %w", err)
	}

	slog.Info("user activated",
		slog.String("user_id", userID),
		slog.String("admin_id", adminID),
	)

	return nil
}

// ListUsers は登録ユーザーの一覧をページングして返す。
func (s *Service) ListUsers(ctx context.Context, page, limit int) ([]model.User, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	users, total, err := s.userRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// GetStats はダッシュボード向けの統計を返す。
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	total, active, err := s.userRepo.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	byStatus, err := s.listingRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	return &Stats{
		TotalUsers:      total,
		ActiveUsers:     active,
		ListingsByState: byStatus,
	}, nil
}
