package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethiomarket/marketd/internal/auth"
	"github.com/ethiomarket/marketd/internal/config"
	"github.com/ethiomarket/marketd/internal/database"
	"github.com/ethiomarket/marketd/internal/handler"
	"github.com/ethiomarket/marketd/internal/listing"
	"github.com/ethiomarket/marketd/internal/logger"
	"github.com/ethiomarket/marketd/internal/message"
	"github.com/ethiomarket/marketd/internal/metrics"
	"github.com/ethiomarket/marketd/internal/middleware"
	"github.com/ethiomarket/marketd/internal/moderation"
	"github.com/ethiomarket/marketd/internal/otp"
	"github.com/ethiomarket/marketd/internal/repository"
	"github.com/ethiomarket/marketd/internal/sms"
	"github.com/ethiomarket/marketd/internal/storage"
	"github.com/ethiomarket/marketd/internal/worker/expire"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, component string) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, component)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w, string(cmd))
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newBlobStore はCloudinaryの資格情報が構成されている場合のみBlobStoreを返す。
// 未構成の場合はnilを返し、画像アップロードはプレースホルダーにフォールバックする。
func newBlobStore(cfg *config.Config) storage.BlobStore {
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" {
		slog.Warn("cloudinary is not configured, image uploads fall back to placeholder")
		return nil
	}
	return storage.NewCloudinaryClient(
		&http.Client{Timeout: 30 * time.Second},
		slog.Default(),
		cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret,
	)
}

// newSMSSender はSMS送信クライアントを返す。
// モックモードの場合は送信せずログ出力のみ行うMockSenderを返す。
func newSMSSender(cfg *config.Config) sms.Sender {
	if cfg.SMSMockMode {
		return sms.NewMockSender(slog.Default())
	}
	return sms.NewTwilioClient(
		&http.Client{Timeout: 15 * time.Second},
		slog.Default(),
		cfg.SMSAccountSID, cfg.SMSAuthToken, cfg.SMSFrom,
	)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, cfg.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)
	messageRepo := repository.NewPostgresMessageRepo(db)

	// 3. 外部サービスクライアントの初期化
	blobs := newBlobStore(cfg)

	// 4. ドメインサービスの初期化
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	authService := auth.NewService(userRepo, auth.NewPasswordHasher(), tokens, blobs, cfg.PlaceholderImageURL)
	listingService := listing.NewService(listingRepo, userRepo, blobs, cfg.ListingLifetime, cfg.PlaceholderImageURL)
	messageService := message.NewService(messageRepo, listingRepo, userRepo)
	moderationService := moderation.NewService(listingRepo, userRepo)

	// 5. 電話番号確認サービス（Redis構成時のみ）
	var otpService handler.OTPServiceInterface
	if cfg.RedisURL != "" {
		otpRepo, err := repository.NewRedisOTPRepo(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer otpRepo.Close()

		otpService = otp.NewService(otpRepo, userRepo, newSMSSender(cfg), cfg.OTPTTL, cfg.OTPMaxAttempts)
		slog.Info("phone verification enabled")
	} else {
		slog.Info("redis is not configured, phone verification disabled")
	}

	// 6. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 7. レートリミッターの初期化
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(
		cfg.RateLimitGeneral, cfg.RateLimitAuth, cfg.RateLimitOTP,
	))
	defer rateLimiter.Stop()

	// 8. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		TokenManager:      tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService:       authService,
		UserService:       authService,
		ListingService:    listingService,
		MessageService:    messageService,
		ModerationService: moderationService,
		OTPService:        otpService,

		Metrics:         collector,
		MetricsGatherer: registry,
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れ出品の自動失効ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, cfg.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 失効ジョブの初期化
	listingRepo := repository.NewPostgresListingRepo(db)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	sweeper := expire.NewSweeper(listingRepo, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("expire_interval", cfg.ExpireInterval),
	)

	// 失効スイープをメインgoroutineで実行（ブロッキング）
	sweeper.Start(ctx, cfg.ExpireInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
