package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethiomarket/marketd/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, name, email, password_hash, phone, role, is_verified, is_active,
	        avatar_url, rating, total_ratings, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	user := &model.User{}
	var phone, avatarURL sql.NullString
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &phone,
		&user.Role, &user.IsVerified, &user.IsActive,
		&avatarURL, &user.Rating, &user.TotalRatings, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Phone = nullStringValue(phone)
	user.AvatarURL = nullStringValue(avatarURL)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メールアドレスによるユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// FindByPhone は電話番号でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`,
		phone,
	)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("電話番号によるユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, phone, role, is_verified, is_active,
		                    avatar_url, rating, total_ratings, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		user.ID, user.Name, user.Email, user.PasswordHash, nullString(user.Phone),
		user.Role, user.IsVerified, user.IsActive,
		nullString(user.AvatarURL), user.Rating, user.TotalRatings,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はユーザーのプロフィール情報を更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, email = $3, phone = $4, updated_at = $5
		 WHERE id = $1`,
		user.ID, user.Name, user.Email, nullString(user.Phone), user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdatePassword はパスワードハッシュを更新する。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateAvatar はアバターURLを更新する。
func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_url = $2, updated_at = now() WHERE id = $1`,
		id, nullString(avatarURL),
	)
	if err != nil {
		return fmt.Errorf("アバターの更新に失敗しました: %w", err)
	}
	return nil
}

// MarkVerified は指定電話番号のユーザーを認証済みにする。
func (r *PostgresUserRepo) MarkVerified(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = true, updated_at = now() WHERE phone = $1`,
		phone,
	)
	if err != nil {
		return fmt.Errorf("認証済みフラグの更新に失敗しました: %w", err)
	}
	return nil
}

// DeactivateWithListings はユーザーの無効化と所有する全出品の期限切れ化を
// 同一トランザクションで実行する。影響を受けた出品数を返す。
func (r *PostgresUserRepo) DeactivateWithListings(ctx context.Context, userID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザーを無効化
	_, err = tx.ExecContext(ctx,
		`UPDATE users SET is_active = false, updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("ユーザーの無効化に失敗しました: %w", err)
	}

	// 所有する全出品をステータスにかかわらずexpiredに遷移させる。
	// pendingを残すと無効化後に承認できてしまうため、絞り込みは行わない。
	result, err := tx.ExecContext(ctx,
		`UPDATE listings SET status = 'expired', updated_at = now()
		 WHERE seller_id = $1 AND status <> 'expired'`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("出品の一括期限切れ化に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return affected, nil
}

// Activate は無効化されたユーザーを再有効化する。出品は復元しない。
func (r *PostgresUserRepo) Activate(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = true, updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの再有効化に失敗しました: %w", err)
	}
	return nil
}

// List はユーザー一覧をページネーション付きで取得する。総件数も返す。
func (r *PostgresUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ユーザー総数の取得に失敗しました: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}

	return users, total, nil
}

// CountUsers は総ユーザー数と有効ユーザー数を返す。
func (r *PostgresUserRepo) CountUsers(ctx context.Context) (total, active int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users`,
	).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("ユーザー数の集計に失敗しました: %w", err)
	}
	return total, active, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
