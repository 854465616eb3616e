package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ethiomarket/marketd/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した出品リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

// FindByID は指定IDの出品を出品者情報とJOINして取得する。
// ステータスに関係なく取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.ListingWithSeller, error) {
	lws := &model.ListingWithSeller{}
	var contactPhone, contactWhatsApp, contactTelegram, contactEmail sql.NullString
	var sellerPhone sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT l.id, l.seller_id, l.title, l.short_description, l.long_description,
		        l.category, l.region, l.contact_phone, l.contact_whatsapp,
		        l.contact_telegram, l.contact_email, l.status, l.views, l.featured,
		        l.expires_at, l.created_at, l.updated_at,
		        u.name, u.phone, u.rating
		 FROM listings l
		 JOIN users u ON u.id = l.seller_id
		 WHERE l.id = $1`,
		id,
	).Scan(
		&lws.ID, &lws.SellerID, &lws.Title, &lws.ShortDescription, &lws.LongDescription,
		&lws.Category, &lws.Region, &contactPhone, &contactWhatsApp,
		&contactTelegram, &contactEmail, &lws.Status, &lws.Views, &lws.Featured,
		&lws.ExpiresAt, &lws.CreatedAt, &lws.UpdatedAt,
		&lws.SellerName, &sellerPhone, &lws.SellerRating,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("出品の取得に失敗しました: %w", err)
	}

	lws.ContactMethods = model.ContactMethods{
		Phone:    nullStringValue(contactPhone),
		WhatsApp: nullStringValue(contactWhatsApp),
		Telegram: nullStringValue(contactTelegram),
		Email:    nullStringValue(contactEmail),
	}
	lws.SellerPhone = nullStringValue(sellerPhone)

	images, err := r.loadImages(ctx, []string{lws.ID})
	if err != nil {
		return nil, err
	}
	lws.Images = images[lws.ID]

	return lws, nil
}

// Create は出品と添付画像を同一トランザクションで作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO listings (id, seller_id, title, short_description, long_description,
		                       category, region, contact_phone, contact_whatsapp,
		                       contact_telegram, contact_email, status, views, featured,
		                       expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		listing.ID, listing.SellerID, listing.Title, listing.ShortDescription,
		listing.LongDescription, listing.Category, listing.Region,
		nullString(listing.ContactMethods.Phone), nullString(listing.ContactMethods.WhatsApp),
		nullString(listing.ContactMethods.Telegram), nullString(listing.ContactMethods.Email),
		listing.Status, listing.Views, listing.Featured,
		listing.ExpiresAt, listing.CreatedAt, listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("出品の作成に失敗しました: %w", err)
	}

	if err := insertImages(ctx, tx, listing.ID, listing.Images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update は出品を更新し、添付画像を同一トランザクションで置き換える。
func (r *PostgresListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE listings SET
		    title = $2, short_description = $3, long_description = $4,
		    category = $5, region = $6,
		    contact_phone = $7, contact_whatsapp = $8, contact_telegram = $9,
		    contact_email = $10, status = $11, featured = $12,
		    expires_at = $13, updated_at = $14
		 WHERE id = $1`,
		listing.ID, listing.Title, listing.ShortDescription, listing.LongDescription,
		listing.Category, listing.Region,
		nullString(listing.ContactMethods.Phone), nullString(listing.ContactMethods.WhatsApp),
		nullString(listing.ContactMethods.Telegram), nullString(listing.ContactMethods.Email),
		listing.Status, listing.Featured, listing.ExpiresAt, listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("出品の更新に失敗しました: %w", err)
	}

	// 画像は全削除して挿入し直す
	_, err = tx.ExecContext(ctx, `DELETE FROM listing_images WHERE listing_id = $1`, listing.ID)
	if err != nil {
		return fmt.Errorf("出品画像の削除に失敗しました: %w", err)
	}
	if err := insertImages(ctx, tx, listing.ID, listing.Images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は指定IDの出品を削除する。画像レコードはCASCADE削除される。
func (r *PostgresListingRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM listings WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("出品の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("listing not found: %s", id)
	}
	return nil
}

// UpdateStatus は出品のステータスのみを更新する。
func (r *PostgresListingRepo) UpdateStatus(ctx context.Context, id string, status model.ListingStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("出品ステータスの更新に失敗しました: %w", err)
	}
	return nil
}

// List はフィルタ条件に一致する出品をcreated_at降順で取得する。
// filter.Statusesが空の場合はステータス条件を付けない。
func (r *PostgresListingRepo) List(ctx context.Context, filter model.ListingFilter) (*model.ListingPage, error) {
	where := []string{}
	args := []interface{}{}
	argIndex := 1

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, s)
			argIndex++
		}
		where = append(where, fmt.Sprintf("l.status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.SellerID != "" {
		where = append(where, fmt.Sprintf("l.seller_id = $%d", argIndex))
		args = append(args, filter.SellerID)
		argIndex++
	}
	if filter.Category != "" {
		where = append(where, fmt.Sprintf("l.category = $%d", argIndex))
		args = append(args, filter.Category)
		argIndex++
	}
	if filter.Region != "" {
		where = append(where, fmt.Sprintf("l.region = $%d", argIndex))
		args = append(args, filter.Region)
		argIndex++
	}
	if filter.Search != "" {
		// タイトルと説明文に対する部分一致検索
		where = append(where, fmt.Sprintf(
			"(l.title ILIKE $%d OR l.short_description ILIKE $%d OR l.long_description ILIKE $%d)",
			argIndex, argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM listings l` + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("出品総数の取得に失敗しました: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	query := `
		SELECT l.id, l.seller_id, l.title, l.short_description, l.long_description,
		       l.category, l.region, l.contact_phone, l.contact_whatsapp,
		       l.contact_telegram, l.contact_email, l.status, l.views, l.featured,
		       l.expires_at, l.created_at, l.updated_at,
		       u.name, u.phone, u.rating
		FROM listings l
		JOIN users u ON u.id = l.seller_id` + whereClause +
		fmt.Sprintf(" ORDER BY l.featured DESC, l.created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("出品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var listings []model.ListingWithSeller
	var ids []string
	for rows.Next() {
		var lws model.ListingWithSeller
		var contactPhone, contactWhatsApp, contactTelegram, contactEmail sql.NullString
		var sellerPhone sql.NullString

		if err := rows.Scan(
			&lws.ID, &lws.SellerID, &lws.Title, &lws.ShortDescription, &lws.LongDescription,
			&lws.Category, &lws.Region, &contactPhone, &contactWhatsApp,
			&contactTelegram, &contactEmail, &lws.Status, &lws.Views, &lws.Featured,
			&lws.ExpiresAt, &lws.CreatedAt, &lws.UpdatedAt,
			&lws.SellerName, &sellerPhone, &lws.SellerRating,
		); err != nil {
			return nil, fmt.Errorf("出品行の読み取りに失敗しました: %w", err)
		}

		lws.ContactMethods = model.ContactMethods{
			Phone:    nullStringValue(contactPhone),
			WhatsApp: nullStringValue(contactWhatsApp),
			Telegram: nullStringValue(contactTelegram),
			Email:    nullStringValue(contactEmail),
		}
		lws.SellerPhone = nullStringValue(sellerPhone)

		listings = append(listings, lws)
		ids = append(ids, lws.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("出品一覧の走査に失敗しました: %w", err)
	}

	if len(ids) > 0 {
		images, err := r.loadImages(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range listings {
			listings[i].Images = images[listings[i].ID]
		}
	}

	return &model.ListingPage{Listings: listings, Total: total}, nil
}

// IncrementViews は閲覧数を1増やす。
func (r *PostgresListingRepo) IncrementViews(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET views = views + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("閲覧数の更新に失敗しました: %w", err)
	}
	return nil
}

// ExpireOverdue は期限切れのactive出品を一括でexpiredに更新する。
// 影響を受けた出品数を返す。
func (r *PostgresListingRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE listings SET status = 'expired', updated_at = now()
		 WHERE status = 'active' AND expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れ出品の一括更新に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// CountByStatus はステータスごとの出品数を返す。
func (r *PostgresListingRepo) CountByStatus(ctx context.Context) (map[model.ListingStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM listings GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("出品数の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ListingStatus]int)
	for rows.Next() {
		var status model.ListingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("集計行の読み取りに失敗しました: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("集計結果の走査に失敗しました: %w", err)
	}
	return counts, nil
}

// loadImages は複数出品の画像をまとめて取得し、出品IDごとにグループ化して返す。
func (r *PostgresListingRepo) loadImages(ctx context.Context, listingIDs []string) (map[string][]model.ListingImage, error) {
	placeholders := make([]string, len(listingIDs))
	args := make([]interface{}, len(listingIDs))
	for i, id := range listingIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT listing_id, url, public_id FROM listing_images
		 WHERE listing_id IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("出品画像の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	images := make(map[string][]model.ListingImage)
	for rows.Next() {
		var listingID string
		var img model.ListingImage
		if err := rows.Scan(&listingID, &img.URL, &img.PublicID); err != nil {
			return nil, fmt.Errorf("画像行の読み取りに失敗しました: %w", err)
		}
		images[listingID] = append(images[listingID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("出品画像の走査に失敗しました: %w", err)
	}
	return images, nil
}

// insertImages は出品画像を表示順付きで挿入する。
func insertImages(ctx context.Context, tx *sql.Tx, listingID string, images []model.ListingImage) error {
	for i, img := range images {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listing_images (listing_id, url, public_id, position)
			 VALUES ($1, $2, $3, $4)`,
			listingID, img.URL, img.PublicID, i,
		)
		if err != nil {
			return fmt.Errorf("出品画像の挿入に失敗しました: %w", err)
		}
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
