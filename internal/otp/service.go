// Package otp はSMSによる電話番号確認コードの発行と検証を提供する。
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethiomarket/marketd/internal/model"
	"github.com/ethiomarket/marketd/internal/repository"
	"github.com/ethiomarket/marketd/internal/sms"
)

const codeDigits = 6

// Service は確認コードの発行と検証を行う。
type Service struct {
	repo        repository.OTPRepository
	userRepo    repository.UserRepository
	sender      sms.Sender
	ttl         time.Duration
	maxAttempts int
}

// NewService はServiceを生成する。
func NewService(
	repo repository.OTPRepository,
	userRepo repository.UserRepository,
	sender sms.Sender,
	ttl time.Duration,
	maxAttempts int,
) *Service {
	return &Service{
		repo:        repo,
		userRepo:    userRepo,
		sender:      sender,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

// Send は6桁の確認コードを生成して保存し、SMSで送信する。
func (s *Service) Send(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return model.NewValidationError("電話番号は必須です")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.repo.Save(ctx, phone, code, s.ttl); err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}

	body := fmt.Sprintf("Your Ethiopia Market verification code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.sender.Send(ctx, phone, body); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	slog.Info("verification code sent", slog.String("phone", phone))
	return nil
}

// Verify は確認コードを検証する。成功するとコードを削除し、
// 該当する電話番号のユーザーを確認済みにする。
func (s *Service) Verify(ctx context.Context, phone, code string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" {
		return model.NewValidationError("電話番号と確認コードは必須です")
	}

	entry, err := s.repo.Find(ctx, phone)
	if err != nil {
		return fmt.Errorf("failed to find code: %w", err)
	}
	if entry == nil {
		return model.NewOTPExpiredError()
	}

	attempts, err := s.repo.IncrementAttempts(ctx, phone)
	if err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	if attempts > s.maxAttempts {
		if err := s.repo.Delete(ctx, phone); err != nil {
			slog.Warn("failed to delete code after attempts exceeded",
				slog.String("phone", phone),
				slog.String("error", err.Error()),
			)
		}
		return model.NewOTPAttemptsExceededError()
	}

	if entry.Code != code {
		return model.NewOTPInvalidError()
	}

	if err := s.repo.Delete(ctx, phone); err != nil {
		slog.Warn("failed to delete verified code",
			slog.String("phone", phone),
			slog.String("error", err.Error()),
		)
	}

	if err := s.userRepo.MarkVerified(ctx, phone); err != nil {
		return fmt.Errorf("failed to mark user as verified: %w", err)
	}

	slog.Info("phone verified", slog.String("phone", phone))
	return nil
}

// generateCode は暗号学的乱数で6桁の数字コードを生成する。
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
