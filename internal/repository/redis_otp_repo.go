package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOTPRepo はRedisを使用したSMS認証コードリポジトリ。
// コードはハッシュ otp:{phone} にTTL付きで保存する。
type RedisOTPRepo struct {
	client *redis.Client
}

// NewRedisOTPRepo は接続確認を行いRedisOTPRepoを生成する。
func NewRedisOTPRepo(redisURL string) (*RedisOTPRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisOTPRepo{client: client}, nil
}

// Close はRedis接続を閉じる。
func (r *RedisOTPRepo) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

func otpKey(phone string) string {
	return fmt.Sprintf("otp:%s", phone)
}

// Save は認証コードをTTL付きで保存する。既存のコードは上書きされる。
func (r *RedisOTPRepo) Save(ctx context.Context, phone, code string, ttl time.Duration) error {
	key := otpKey(phone)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to reset OTP key: %w", err)
	}
	if err := r.client.HSet(ctx, key, map[string]interface{}{
		"code":     code,
		"attempts": 0,
	}).Err(); err != nil {
		return fmt.Errorf("failed to store OTP: %w", err)
	}
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set OTP expiration: %w", err)
	}
	return nil
}

// Find は指定電話番号の認証コードを取得する。期限切れまたは未保存の場合はnilを返す。
func (r *RedisOTPRepo) Find(ctx context.Context, phone string) (*OTPEntry, error) {
	result, err := r.client.HGetAll(ctx, otpKey(phone)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	attempts, err := strconv.Atoi(result["attempts"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse OTP attempts: %w", err)
	}

	return &OTPEntry{Code: result["code"], Attempts: attempts}, nil
}

// IncrementAttempts は試行回数を1増やし、更新後の回数を返す。
func (r *RedisOTPRepo) IncrementAttempts(ctx context.Context, phone string) (int, error) {
	attempts, err := r.client.HIncrBy(ctx, otpKey(phone), "attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment OTP attempts: %w", err)
	}
	return int(attempts), nil
}

// Delete は認証コードを削除する。
func (r *RedisOTPRepo) Delete(ctx context.Context, phone string) error {
	if err := r.client.Del(ctx, otpKey(phone)).Err(); err != nil {
		return fmt.Errorf("failed to delete OTP: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OTPRepository = (*RedisOTPRepo)(nil)
