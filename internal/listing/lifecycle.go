// Package listing は出品のライフサイクル管理と検索機能を提供する。
package listing

import "github.com/ethiomarket/marketd/internal/model"

// allowedTransitions は出品ステータスの許可された遷移を定義する。
// ここにない遷移はすべて不正な状態遷移として拒否される。
var allowedTransitions = map[model.ListingStatus]map[model.ListingStatus]bool{
	model.ListingStatusPending: {
		model.ListingStatusActive:   true, // 管理者による承認
		model.ListingStatusRejected: true, // 管理者による却下
	},
	model.ListingStatusActive: {
		model.ListingStatusSold:    true, // 出品者による売却済みマーク
		model.ListingStatusExpired: true, // 期限切れ（スイープまたは出品者）
	},
	model.ListingStatusExpired: {
		model.ListingStatusActive: true, // 出品者による再掲載
	},
}

// CanTransition はfromからtoへの遷移が許可されているかを返す。
// 同一ステータスへの遷移は常に許可される（no-op）。
func CanTransition(from, to model.ListingStatus) bool {
	if from == to {
		return true
	}
	return allowedTransitions[from][to]
}

// Transition は遷移を検証し、不正な場合はInvalidStateTransitionエラーを返す。
// ステータスは変更せず、検証のみ行う。
func Transition(from, to model.ListingStatus) error {
	if !CanTransition(from, to) {
		return model.NewInvalidStateTransitionError(from, to)
	}
	return nil
}
