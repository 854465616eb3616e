// Package visibility は閲覧者に応じた出品の可視性ポリシーを定義する。
package visibility

import (
	"strings"

	"github.com/ethiomarket/marketd/internal/model"
)

// Identity は認証済みの閲覧者を表す。ゼロ値は匿名閲覧者を意味する。
type Identity struct {
	ID   string
	Role model.Role
}

// IsAnonymous は匿名閲覧者かどうかを返す。
func (i Identity) IsAnonymous() bool {
	return i.ID == ""
}

// IsAdmin は管理者かどうかを返す。
func (i Identity) IsAdmin() bool {
	return i.Role == model.RoleAdmin
}

// NormalizeID はユーザーIDを比較可能な正規形に変換する。
// ID同士の同一性判定は必ずこの関数を通すこと。
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// SameUser は2つのユーザーIDが同一ユーザーを指すかを正規形で判定する。
func SameUser(a, b string) bool {
	if NormalizeID(a) == "" {
		return false
	}
	return NormalizeID(a) == NormalizeID(b)
}

// CanModify は閲覧者が指定出品者のリソースを変更できるかを返す。
// 所有者本人と管理者のみ変更できる。
func CanModify(viewer Identity, sellerID string) bool {
	if viewer.IsAdmin() {
		return true
	}
	return SameUser(viewer.ID, sellerID)
}

// ListingStatuses はコレクションクエリに適用する実効ステータスフィルタを決定する。
// 空スライスはステータス条件なし（全ステータス）を意味する。
//
//   - 明示的なステータス指定は閲覧者に関係なくそのまま適用する。
//   - 出品者スコープのクエリで閲覧者が所有者本人または管理者の場合、
//     指定がなければ全ステータスを返す。
//   - それ以外はactiveのみを返す。
func ListingStatuses(viewer Identity, sellerID string, requested model.ListingStatus, sellerScoped bool) []model.ListingStatus {
	if requested != "" {
		return []model.ListingStatus{requested}
	}
	if sellerScoped && CanModify(viewer, sellerID) {
		return nil
	}
	return []model.ListingStatus{model.ListingStatusActive}
}
