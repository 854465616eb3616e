package listing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/storage"
	"github.com/ethiomarket/marketd/internal/visibility"
)

func sellerIdentity(id string) visibility.Identity {
	return visibility.Identity{ID: id, Role: model.RoleSeller}
}

func adminIdentity(id string) visibility.Identity {
	return visibility.Identity{ID: id, Role: model.RoleAdmin}
}

func validCreateInput() CreateInput {
	return CreateInput{
		Title:            "iPhone 13 Pro",
		ShortDescription: "ほぼ新品のスマートフォン",
		LongDescription:  "昨年購入。付属品完備。アディスアベバで手渡し可能。",
		Category:         "electronics",
		Region:           "addisababa",
		ContactMethods:   model.ContactMethods{Phone: "+251911000000"},
	}
}

func TestService_Create(t *testing.T) {
	t.Run("正常に作成され、ステータスは必ずpendingになる", func(t *testing.T) {
		var created *model.Listing
		repo := &mockListingRepo{
			createFunc: func(ctx context.Context, listing *model.Listing) error {
				created = listing
				return nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, 30*24*time.Hour, "https://example.com/placeholder.png")

		got, err := svc.Create(context.Background(), sellerIdentity("seller-1"), validCreateInput())
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if created == nil {
			t.Fatal("リポジトリのCreateが呼ばれなかった")
		}
		if got.Status != model.ListingStatusPending {
			t.Errorf("Status = %s, 期待値 %s", got.Status, model.ListingStatusPending)
		}
		if got.SellerID != "seller-1" {
			t.Errorf("SellerID = %s, 期待値 seller-1", got.SellerID)
		}
		if got.ID == "" {
			t.Error("IDが空")
		}
		if got.ExpiresAt.Before(time.Now().Add(29 * 24 * time.Hour)) {
			t.Error("ExpiresAtが有効期間より早すぎる")
		}
	})

	t.Run("未認証の場合はUnauthorizedエラー", func(t *testing.T) {
		svc := NewService(&mockListingRepo{}, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.Create(context.Background(), visibility.Identity{}, validCreateInput())
		assertAPIErrorCode(t, err, "UNAUTHORIZED")
	})

	t.Run("タイトルが空の場合はバリデーションエラー", func(t *testing.T) {
		svc := NewService(&mockListingRepo{}, &mockUserRepo{}, nil, time.Hour, "")

		input := validCreateInput()
		input.Title = "   "
		_, err := svc.Create(context.Background(), sellerIdentity("seller-1"), input)
		assertAPIErrorCode(t, err, "VALIDATION_ERROR")
	})

	t.Run("タイトル長はバイト数ではなく文字数で判定する", func(t *testing.T) {
		repo := &mockListingRepo{}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		// アムハラ語はUTF-8で1文字3バイトになる。100文字以内なら通る。
		input := validCreateInput()
		input.Title = strings.Repeat("መ", 100)
		if _, err := svc.Create(context.Background(), sellerIdentity("seller-1"), input); err != nil {
			t.Fatalf("100文字のタイトルが拒否された: %v", err)
		}

		input.Title = strings.Repeat("መ", 101)
		_, err := svc.Create(context.Background(), sellerIdentity("seller-1"), input)
		assertAPIErrorCode(t, err, "VALIDATION_ERROR")
	})

	t.Run("不正なカテゴリの場合はエラー", func(t *testing.T) {
		svc := NewService(&mockListingRepo{}, &mockUserRepo{}, nil, time.Hour, "")

		input := validCreateInput()
		input.Category = "spaceships"
		_, err := svc.Create(context.Background(), sellerIdentity("seller-1"), input)
		assertAPIErrorCode(t, err, "INVALID_CATEGORY")
	})

	t.Run("不正な地域の場合はエラー", func(t *testing.T) {
		svc := NewService(&mockListingRepo{}, &mockUserRepo{}, nil, time.Hour, "")

		input := validCreateInput()
		input.Region = "mars"
		_, err := svc.Create(context.Background(), sellerIdentity("seller-1"), input)
		assertAPIErrorCode(t, err, "INVALID_REGION")
	})

	t.Run("HTMLタグはサニタイズされる", func(t *testing.T) {
		var created *model.Listing
		repo := &mockListingRepo{
			createFunc: func(ctx context.Context, listing *model.Listing) error {
				created = listing
				return nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		input := validCreateInput()
		input.Title = "<script>alert(1)</script>中古自転車"
		_, err := svc.Create(context.Background(), sellerIdentity("seller-1"), input)
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if created.Title != "中古自転車" {
			t.Errorf("Title = %q, スクリプトタグが除去されていない", created.Title)
		}
	})

}

func TestService_Create_ImageFallback(t *testing.T) {
	placeholder := "https://example.com/placeholder.png"
	blobs := &mockBlobStore{
		uploadFunc: func(ctx context.Context, data []byte, folder string) (*storage.Blob, error) {
			return nil, errors.New("cloudinary unavailable")
		},
	}
	var created *model.Listing
	repo := &mockListingRepo{
		createFunc: func(ctx context.Context, listing *model.Listing) error {
			created = listing
			return nil
		},
	}
	svc := NewService(repo, &mockUserRepo{}, blobs, time.Hour, placeholder)

	input := validCreateInput()
	input.Images = [][]byte{[]byte("fake-image-data")}
	_, err := svc.Create(context.Background(), sellerIdentity("seller-1"), input)
	if err != nil {
		t.Fatalf("エラーが発生した: %v", err)
	}
	if len(created.Images) != 1 {
		t.Fatalf("画像数 = %d, 期待値 1", len(created.Images))
	}
	if created.Images[0].URL != placeholder {
		t.Errorf("URL = %s, プレースホルダーにフォールバックしていない", created.Images[0].URL)
	}
}

func TestService_Get(t *testing.T) {
	t.Run("ステータスに関係なく取得できる", func(t *testing.T) {
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return &model.ListingWithSeller{
					Listing: model.Listing{ID: id, Status: model.ListingStatusRejected},
				}, nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		got, err := svc.Get(context.Background(), "listing-1")
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if got.Status != model.ListingStatusRejected {
			t.Errorf("Status = %s, 期待値 rejected", got.Status)
		}
	})

	t.Run("存在しない場合はNotFoundエラー", func(t *testing.T) {
		svc := NewService(&mockListingRepo{}, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.Get(context.Background(), "missing")
		assertAPIErrorCode(t, err, "LISTING_NOT_FOUND")
	})
}

func TestService_Update(t *testing.T) {
	existing := func() *model.ListingWithSeller {
		return &model.ListingWithSeller{
			Listing: model.Listing{
				ID:       "listing-1",
				SellerID: "seller-1",
				Title:    "旧タイトル",
				Status:   model.ListingStatusActive,
			},
		}
	}

	t.Run("所有者はタイトルを更新できる", func(t *testing.T) {
		var updated *model.Listing
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing(), nil
			},
			updateFunc: func(ctx context.Context, listing *model.Listing) error {
				updated = listing
				return nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		got, err := svc.Update(context.Background(), sellerIdentity("seller-1"), "listing-1", UpdateInput{Title: "新タイトル"})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if got.Title != "新タイトル" {
			t.Errorf("Title = %s", got.Title)
		}
		if updated == nil {
			t.Error("リポジトリのUpdateが呼ばれなかった")
		}
	})

	t.Run("他人の出品は更新できない", func(t *testing.T) {
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing(), nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.Update(context.Background(), sellerIdentity("other-user"), "listing-1", UpdateInput{Title: "乗っ取り"})
		assertAPIErrorCode(t, err, "FORBIDDEN")
	})

	t.Run("管理者は他人の出品を更新できる", func(t *testing.T) {
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing(), nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.Update(context.Background(), adminIdentity("admin-1"), "listing-1", UpdateInput{Title: "修正済み"})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
	})

	t.Run("所有者はactiveからsoldに遷移できる", func(t *testing.T) {
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing(), nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		got, err := svc.Update(context.Background(), sellerIdentity("seller-1"), "listing-1", UpdateInput{Status: "sold"})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if got.Status != model.ListingStatusSold {
			t.Errorf("Status = %s, 期待値 sold", got.Status)
		}
	})

	t.Run("所有者はactiveからpendingに戻せない", func(t *testing.T) {
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing(), nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.Update(context.Background(), sellerIdentity("seller-1"), "listing-1", UpdateInput{Status: "pending"})
		assertAPIErrorCode(t, err, "INVALID_STATE_TRANSITION")
	})

	t.Run("管理者は遷移表に縛られない", func(t *testing.T) {
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing(), nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		got, err := svc.Update(context.Background(), adminIdentity("admin-1"), "listing-1", UpdateInput{Status: "pending"})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if got.Status != model.ListingStatusPending {
			t.Errorf("Status = %s, 期待値 pending", got.Status)
		}
	})

	t.Run("不正なステータス値はエラー", func(t *testing.T) {
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing(), nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.Update(context.Background(), sellerIdentity("seller-1"), "listing-1", UpdateInput{Status: "banana"})
		assertAPIErrorCode(t, err, "INVALID_STATUS")
	})

	t.Run("存在しない出品はNotFoundエラー", func(t *testing.T) {
		svc := NewService(&mockListingRepo{}, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.Update(context.Background(), sellerIdentity("seller-1"), "missing", UpdateInput{Title: "x"})
		assertAPIErrorCode(t, err, "LISTING_NOT_FOUND")
	})
}

func TestService_Delete(t *testing.T) {
	existing := &model.ListingWithSeller{
		Listing: model.Listing{
			ID:       "listing-1",
			SellerID: "seller-1",
			Images:   []model.ListingImage{{URL: "https://cdn.example.com/a.jpg", PublicID: "a"}},
		},
	}

	t.Run("所有者は削除でき、ブロブ削除失敗でも成功する", func(t *testing.T) {
		deleted := false
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing, nil
			},
			deleteFunc: func(ctx context.Context, id string) error {
				deleted = true
				return nil
			},
		}
		blobs := &mockBlobStore{
			deleteFunc: func(ctx context.Context, publicID string) error {
				return errors.New("cloudinary unavailable")
			},
		}
		svc := NewService(repo, &mockUserRepo{}, blobs, time.Hour, "")

		if err := svc.Delete(context.Background(), sellerIdentity("seller-1"), "listing-1"); err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if !deleted {
			t.Error("リポジトリのDeleteが呼ばれなかった")
		}
	})

	t.Run("他人の出品は削除できない", func(t *testing.T) {
		repo := &mockListingRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.ListingWithSeller, error) {
				return existing, nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		err := svc.Delete(context.Background(), sellerIdentity("other-user"), "listing-1")
		assertAPIErrorCode(t, err, "FORBIDDEN")
	})
}

func TestService_RecordView(t *testing.T) {
	t.Run("加算失敗でもパニックしない", func(t *testing.T) {
		repo := &mockListingRepo{
			incrementFunc: func(ctx context.Context, id string) error {
				return errors.New("db down")
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")
		svc.RecordView(context.Background(), "listing-1")
	})
}

func TestService_List(t *testing.T) {
	t.Run("ステータス指定なしの場合はactiveのみ", func(t *testing.T) {
		var captured model.ListingFilter
		repo := &mockListingRepo{
			listFunc: func(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error) {
				captured = filter
				return &model.ListingPage{}, nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.List(context.Background(), visibility.Identity{}, ListQuery{})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if len(captured.Statuses) != 1 || captured.Statuses[0] != model.ListingStatusActive {
			t.Errorf("Statuses = %v, 期待値 [active]", captured.Statuses)
		}
	})

	t.Run("ステータスを明示指定した場合はそのまま使う", func(t *testing.T) {
		var captured model.ListingFilter
		repo := &mockListingRepo{
			listFunc: func(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error) {
				captured = filter
				return &model.ListingPage{}, nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.List(context.Background(), visibility.Identity{}, ListQuery{Status: "sold"})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if len(captured.Statuses) != 1 || captured.Statuses[0] != model.ListingStatusSold {
			t.Errorf("Statuses = %v, 期待値 [sold]", captured.Statuses)
		}
	})

	t.Run("不正なステータスはエラー", func(t *testing.T) {
		svc := NewService(&mockListingRepo{}, &mockUserRepo{}, nil, time.Hour, "")

		_, err := svc.List(context.Background(), visibility.Identity{}, ListQuery{Status: "banana"})
		assertAPIErrorCode(t, err, "INVALID_STATUS")
	})

	t.Run("ページとリミットに既定値と上限が適用される", func(t *testing.T) {
		var captured model.ListingFilter
		repo := &mockListingRepo{
			listFunc: func(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error) {
				captured = filter
				return &model.ListingPage{}, nil
			},
		}
		svc := NewService(repo, &mockUserRepo{}, nil, time.Hour, "")

		if _, err := svc.List(context.Background(), visibility.Identity{}, ListQuery{Page: -1, Limit: 999}); err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if captured.Page != 1 {
			t.Errorf("Page = %d, 期待値 1", captured.Page)
		}
		if captured.Limit != maxLimit {
			t.Errorf("Limit = %d, 期待値 %d", captured.Limit, maxLimit)
		}
	})
}

func TestService_ListBySeller(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			if id == "seller-1" {
				return &model.User{ID: "seller-1", Name: "Abebe"}, nil
			}
			return nil, nil
		},
	}

	t.Run("所有者本人は全ステータスが見える", func(t *testing.T) {
		var captured model.ListingFilter
		repo := &mockListingRepo{
			listFunc: func(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error) {
				captured = filter
				return &model.ListingPage{}, nil
			},
		}
		svc := NewService(repo, userRepo, nil, time.Hour, "")

		_, err := svc.ListBySeller(context.Background(), sellerIdentity("seller-1"), "seller-1", ListQuery{})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if captured.Statuses != nil {
			t.Errorf("Statuses = %v, 期待値 nil（全ステータス）", captured.Statuses)
		}
		if captured.SellerID != "seller-1" {
			t.Errorf("SellerID = %s", captured.SellerID)
		}
	})

	t.Run("第三者にはactiveのみ見える", func(t *testing.T) {
		var captured model.ListingFilter
		repo := &mockListingRepo{
			listFunc: func(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error) {
				captured = filter
				return &model.ListingPage{}, nil
			},
		}
		svc := NewService(repo, userRepo, nil, time.Hour, "")

		_, err := svc.ListBySeller(context.Background(), sellerIdentity("other-user"), "seller-1", ListQuery{})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if len(captured.Statuses) != 1 || captured.Statuses[0] != model.ListingStatusActive {
			t.Errorf("Statuses = %v, 期待値 [active]", captured.Statuses)
		}
	})

	t.Run("所有者が明示フィルタを指定した場合はそれを使う", func(t *testing.T) {
		var captured model.ListingFilter
		repo := &mockListingRepo{
			listFunc: func(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error) {
				captured = filter
				return &model.ListingPage{}, nil
			},
		}
		svc := NewService(repo, userRepo, nil, time.Hour, "")

		_, err := svc.ListBySeller(context.Background(), sellerIdentity("seller-1"), "seller-1", ListQuery{Status: "rejected"})
		if err != nil {
			t.Fatalf("エラーが発生した: %v", err)
		}
		if len(captured.Statuses) != 1 || captured.Statuses[0] != model.ListingStatusRejected {
			t.Errorf("Statuses = %v, 期待値 [rejected]", captured.Statuses)
		}
	})

	t.Run("存在しない出品者はNotFoundエラー", func(t *testing.T) {
		svc := NewService(&mockListingRepo{}, userRepo, nil, time.Hour, "")

		_, err := svc.ListBySeller(context.Background(), visibility.Identity{}, "missing", ListQuery{})
		assertAPIErrorCode(t, err, "USER_NOT_FOUND")
	})
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatal("エラーが返されなかった")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorではない: %v", err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %s, 期待値 %s", apiErr.Code, code)
	}
}
