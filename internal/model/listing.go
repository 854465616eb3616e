// Package model はドメインモデルを定義する。
package model

import "time"

// ListingStatus は出品のライフサイクル状態を表す。
type ListingStatus string

const (
	// ListingStatusPending は作成直後の審査待ち状態。
	ListingStatusPending ListingStatus = "pending"
	// ListingStatusActive は管理者承認済みの公開状態。
	ListingStatusActive ListingStatus = "active"
	// ListingStatusRejected は管理者により却下された状態。
	ListingStatusRejected ListingStatus = "rejected"
	// ListingStatusExpired は期限切れまたはアカウント無効化により非公開となった状態。
	ListingStatusExpired ListingStatus = "expired"
	// ListingStatusSold は出品者が売却済みとしてマークした状態。
	ListingStatusSold ListingStatus = "sold"
)

// ValidListingStatuses は有効なステータス値のセット。
var ValidListingStatuses = map[ListingStatus]bool{
	ListingStatusPending:  true,
	ListingStatusActive:   true,
	ListingStatusRejected: true,
	ListingStatusExpired:  true,
	ListingStatusSold:     true,
}

// Category は出品カテゴリを表す閉じた列挙。
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryVehicles    Category = "vehicles"
	CategoryRealEstate  Category = "realestate"
	CategoryFashion     Category = "fashion"
	CategoryHome        Category = "home"
	CategoryServices    Category = "services"
	CategoryJobs        Category = "jobs"
	CategoryOther       Category = "other"
)

// ValidCategories は有効なカテゴリ値のセット。
var ValidCategories = map[Category]bool{
	CategoryElectronics: true,
	CategoryVehicles:    true,
	CategoryRealEstate:  true,
	CategoryFashion:     true,
	CategoryHome:        true,
	CategoryServices:    true,
	CategoryJobs:        true,
	CategoryOther:       true,
}

// Region は出品の地域を表す閉じた列挙。
type Region string

const (
	RegionAddisAbaba Region = "addisababa"
	RegionOromia     Region = "oromia"
	RegionAmhara     Region = "amhara"
	RegionTigray     Region = "tigray"
	RegionSomali     Region = "somali"
	RegionAfar       Region = "afar"
	RegionSidama     Region = "sidama"
	RegionSNNPR      Region = "snnpr"
	RegionOther      Region = "other"
)

// ValidRegions は有効な地域値のセット。
var ValidRegions = map[Region]bool{
	RegionAddisAbaba: true,
	RegionOromia:     true,
	RegionAmhara:     true,
	RegionTigray:     true,
	RegionSomali:     true,
	RegionAfar:       true,
	RegionSidama:     true,
	RegionSNNPR:      true,
	RegionOther:      true,
}

// ListingImage は出品に添付された画像への参照を表す。
// URLは配信用、PublicIDはブロブストレージ側の削除用識別子。
type ListingImage struct {
	URL      string
	PublicID string
}

// ContactMethods は出品者への連絡手段を表す。
// 少なくとも1つの設定が期待されるが、データモデルでは強制しない。
type ContactMethods struct {
	Phone    string
	WhatsApp string
	Telegram string
	Email    string
}

// Listing はライフサイクル状態を持つ出品（広告）を表す。
// Statusは作成時に必ずpendingで開始し、以降はモデレーション
// ワークフローまたは所有者の編集・削除によってのみ遷移する。
type Listing struct {
	ID               string
	SellerID         string
	Title            string
	ShortDescription string
	LongDescription  string
	Category         Category
	Region           Region
	Images           []ListingImage
	ContactMethods   ContactMethods
	Status           ListingStatus
	Views            int
	Featured         bool
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ListingWithSeller は出品と出品者の公開情報を結合したモデル。
// 一覧・詳細レスポンスでsellerをJOINして取得される。
type ListingWithSeller struct {
	Listing
	SellerName   string
	SellerPhone  string
	SellerRating float64
}

// ListingFilter は出品コレクションクエリの検索条件を表す。
// Statusesは可視性ポリシーエンジンが決定した実効ステータスフィルタ。
// 空のSearchは全文条件なしを意味する。
type ListingFilter struct {
	Category Category
	Region   Region
	Search   string
	Statuses []ListingStatus
	SellerID string
	Page     int
	Limit    int
}

// ListingPage は出品一覧の1ページ分の結果を表す。
type ListingPage struct {
	Listings []ListingWithSeller
	Total    int
}
