package listing

import (
	"context"
	"time"

	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/repository"
	"github.com/ethiomarket/marketd/internal/storage"
)

// mockListingRepo はテスト用のListingRepositoryモック。
type mockListingRepo struct {
	findByIDFunc      func(ctx context.Context, id string) (*model.ListingWithSeller, error)
	createFunc        func(ctx context.Context, listing *model.Listing) error
	updateFunc        func(ctx context.Context, listing *model.Listing) error
	deleteFunc        func(ctx context.Context, id string) error
	updateStatusFunc  func(ctx context.Context, id string, status model.ListingStatus) error
	listFunc          func(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error)
	incrementFunc     func(ctx context.Context, id string) error
	expireOverdueFunc func(ctx context.Context, now time.Time) (int64, error)
	countByStatusFunc func(ctx context.Context) (map[model.ListingStatus]int, error)
}

var _ repository.ListingRepository = (*mockListingRepo)(nil)

func (m *mockListingRepo) FindByID(ctx context.Context, id string) (*model.ListingWithSeller, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, listing)
	}
	return nil
}

func (m *mockListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, listing)
	}
	return nil
}

func (m *mockListingRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockListingRepo) UpdateStatus(ctx context.Context, id string, status model.ListingStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockListingRepo) List(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return &model.ListingPage{}, nil
}

func (m *mockListingRepo) IncrementViews(ctx context.Context, id string) error {
	if m.incrementFunc != nil {
		return m.incrementFunc(ctx, id)
	}
	return nil
}

func (m *mockListingRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	if m.expireOverdueFunc != nil {
		return m.expireOverdueFunc(ctx, now)
	}
	return 0, nil
}

func (m *mockListingRepo) CountByStatus(ctx context.Context) (map[model.ListingStatus]int, error) {
	if m.countByStatusFunc != nil {
		return m.countByStatusFunc(ctx)
	}
	return map[model.ListingStatus]int{}, nil
}

// mockUserRepo はテスト用のUserRepositoryモック。
type mockUserRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.User, error)
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }

func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error { return nil }

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return nil
}

func (m *mockUserRepo) UpdateAvatar(ctx context.Context, id, avatarURL string) error { return nil }

func (m *mockUserRepo) MarkVerified(ctx context.Context, phone string) error { return nil }

func (m *mockUserRepo) DeactivateWithListings(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (m *mockUserRepo) Activate(ctx context.Context, userID string) error { return nil }

func (m *mockUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int, error) {
	return nil, 0, nil
}

func (m *mockUserRepo) CountUsers(ctx context.Context) (int, int, error) { return 0, 0, nil }

// mockBlobStore はテスト用のBlobStoreモック。
type mockBlobStore struct {
	uploadFunc func(ctx context.Context, data []byte, folder string) (*storage.Blob, error)
	deleteFunc func(ctx context.Context, publicID string) error
}

var _ storage.BlobStore = (*mockBlobStore)(nil)

func (m *mockBlobStore) Upload(ctx context.Context, data []byte, folder string) (*storage.Blob, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, data, folder)
	}
	return &storage.Blob{URL: "https://cdn.example.com/test.jpg", PublicID: "test"}, nil
}

func (m *mockBlobStore) Delete(ctx context.Context, publicID string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, publicID)
	}
	return nil
}
