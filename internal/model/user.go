// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般（購入側）ユーザー。
	RoleUser Role = "user"
	// RoleSeller は出品者。登録時のデフォルトロール。
	RoleSeller Role = "seller"
	// RoleAdmin は管理者。モデレーション操作と全ステータスの閲覧が可能。
	RoleAdmin Role = "admin"
)

// ValidRoles は有効なロール値のセット。
var ValidRoles = map[Role]bool{
	RoleUser:   true,
	RoleSeller: true,
	RoleAdmin:  true,
}

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスに含めない（ハンドラー層でDTOに変換する）。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string // 任意。設定されている場合はユニーク
	Role         Role
	IsVerified   bool
	IsActive     bool
	AvatarURL    string
	Rating       float64 // 評価の集計値（0.0〜5.0、初期値5.0）
	TotalRatings int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
