// Package storage は出品画像・アバター画像のブロブストレージ連携を提供する。
// Cloudinaryの署名付きアップロードAPIを使用する。
package storage

import "context"

// Blob はアップロード済み画像への参照を表す。
// PublicIDは削除時にストレージ側の識別子として使用する。
type Blob struct {
	URL      string
	PublicID string
}

// BlobStore は画像の保存と削除のインターフェース。
type BlobStore interface {
	// Upload は画像データを指定フォルダにアップロードする。
	Upload(ctx context.Context, data []byte, folder string) (*Blob, error)

	// Delete は指定PublicIDの画像を削除する。
	Delete(ctx context.Context, publicID string) error
}
