// Package expire は掲載期限を過ぎた出品の自動失効ジョブを提供する。
// expires_atを超過したactiveな出品を定期バッチでexpiredに更新する。
package expire

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ListingExpirer は期限切れ出品の一括更新インターフェース。
// repository.ListingRepositoryの部分集合として定義する。
type ListingExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// ExpiredRecorder は失効件数のメトリクス記録インターフェース。
type ExpiredRecorder interface {
	RecordListingsExpired(count int)
}

// Sweeper は期限切れ出品の自動失効ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な更新処理を保証する。
type Sweeper struct {
	listings ListingExpirer
	recorder ExpiredRecorder
	logger   *slog.Logger
}

// NewSweeper は新しいSweeperを生成する。recorderはnilでもよい。
func NewSweeper(listings ListingExpirer, recorder ExpiredRecorder, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		listings: listings,
		recorder: recorder,
		logger:   logger,
	}
}

// RunOnce は掲載期限を超過したactiveな出品を1回の一括更新で失効させる。
// 冪等: 対象がない場合でもエラーにならない。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()

	expired, err := s.listings.ExpireOverdue(ctx, start)
	if err != nil {
		s.logger.Error("出品の自動失効ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("出品の自動失効の実行に失敗: %w", err)
	}

	if s.recorder != nil && expired > 0 {
		s.recorder.RecordListingsExpired(int(expired))
	}

	duration := time.Since(start)
	s.logger.Info("出品の自動失効ジョブが完了しました",
		slog.Int64("expired_count", expired),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("自動失効ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("自動失効サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("自動失効ジョブを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("自動失効サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
