package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/repository"
	"github.com/ethiomarket/marketd/internal/storage"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 6

// RegisterInput はユーザー登録の入力を表す。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Role     string
}

// UpdateDetailsInput はプロフィール更新の入力を表す。
// 空フィールドは変更なしを意味する。
type UpdateDetailsInput struct {
	Name  string
	Email string
	Phone string
}

// AuthResult は認証成功時のユーザーとアクセストークンを表す。
type AuthResult struct {
	User  *model.User
	Token string
}

// Service は認証とユーザー管理のビジネスロジックを提供する。
type Service struct {
	userRepo       repository.UserRepository
	hasher         *PasswordHasher
	tokens         *TokenManager
	blobs          storage.BlobStore
	placeholderURL string
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	hasher *PasswordHasher,
	tokens *TokenManager,
	blobs storage.BlobStore,
	placeholderURL string,
) *Service {
	return &Service{
		userRepo:       userRepo,
		hasher:         hasher,
		tokens:         tokens,
		blobs:          blobs,
		placeholderURL: placeholderURL,
	}
}

// Register は新規ユーザーを登録し、アクセストークンを発行する。
// ロールは user または seller のみ指定でき、未指定の場合は seller になる。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, model.NewValidationError("名前は必須です")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}

	if len(input.Password) < minPasswordLength {
		return nil, model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で指定してください", minPasswordLength))
	}

	role := model.RoleSeller
	if input.Role != "" {
		role = model.Role(input.Role)
		// 管理者ロールは登録時に指定できない
		if !model.ValidRoles[role] || role == model.RoleAdmin {
			return nil, model.NewValidationError(fmt.Sprintf("指定できないロールです: %s", input.Role))
		}
	}

	// メールアドレスの重複チェック
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateEmailError()
	}

	phone := strings.TrimSpace(input.Phone)
	if phone != "" {
		existing, err := s.userRepo.FindByPhone(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("failed to check phone uniqueness: %w", err)
		}
		if existing != nil {
			return nil, model.NewDuplicatePhoneError()
		}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Phone:        phone,
		Role:         role,
		IsVerified:   false,
		IsActive:     true,
		Rating:       5.0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Login はメールアドレスとパスワードで認証し、アクセストークンを発行する。
// 存在しないメールアドレスとパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewValidationError("メールアドレスとパスワードは必須です")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !s.hasher.Check(password, user.PasswordHash) {
		return nil, model.NewInvalidCredentialsError()
	}

	if !user.IsActive {
		return nil, model.NewAccountDeactivatedError()
	}

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &AuthResult{User: user, Token: token}, nil
}

// Me は認証済みユーザー自身の情報を取得する。
func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}
	return user, nil
}

// GetPublicProfile は任意のユーザーの公開プロフィールを取得する。
func (s *Service) GetPublicProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}
	return user, nil
}

// UpdateDetails はプロフィール情報を更新する。空フィールドは変更しない。
func (s *Service) UpdateDetails(ctx context.Context, userID string, input UpdateDetailsInput) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		user.Name = name
	}

	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" && email != user.Email {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
		}
		existing, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if existing != nil {
			return nil, model.NewDuplicateEmailError()
		}
		user.Email = email
	}

	if phone := strings.TrimSpace(input.Phone); phone != "" && phone != user.Phone {
		existing, err := s.userRepo.FindByPhone(ctx, phone)
		if err != nil {
			return nil, fmt.Errorf("failed to check phone uniqueness: %w", err)
		}
		if existing != nil {
			return nil, model.NewDuplicatePhoneError()
		}
		user.Phone = phone
	}

	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// UpdatePassword は現在のパスワードを検証してから新しいパスワードに更新する。
func (s *Service) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}

	if !s.hasher.Check(currentPassword, user.PasswordHash) {
		return model.NewInvalidCredentialsError()
	}

	if len(newPassword) < minPasswordLength {
		return model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上で指定してください", minPasswordLength))
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password updated", slog.String("user_id", userID))
	return nil
}

// UpdateAvatar はアバター画像をブロブストレージにアップロードしてURLを保存する。
// アップロード失敗時はプレースホルダー画像URLにフォールバックする。
func (s *Service) UpdateAvatar(ctx context.Context, userID string, data []byte) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError(userID)
	}

	avatarURL := s.placeholderURL
	if s.blobs != nil {
		blob, err := s.blobs.Upload(ctx, data, "avatars")
		if err != nil {
			slog.Warn("avatar upload failed, falling back to placeholder",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else {
			avatarURL = blob.URL
		}
	}

	if err := s.userRepo.UpdateAvatar(ctx, userID, avatarURL); err != nil {
		return "", fmt.Errorf("failed to update avatar: %w", err)
	}

	return avatarURL, nil
}
