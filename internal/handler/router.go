package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethiomarket/marketd/internal/auth"
	"github.com/ethiomarket/marketd/internal/metrics"
	"github.com/ethiomarket/marketd/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenManager      *auth.TokenManager
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	AuthService       AuthServiceInterface
	UserService       UserServiceInterface
	ListingService    ListingServiceInterface
	MessageService    MessageServiceInterface
	ModerationService ModerationServiceInterface

	// OTPService はRedisが構成されていない場合nil。nilの場合はOTPルートを公開しない。
	OTPService OTPServiceInterface

	// Metrics はリクエストとドメインイベントのメトリクス記録先。nil可。
	Metrics metrics.MetricsCollector

	// MetricsGatherer は/metricsエンドポイント用。nilの場合は公開しない。
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit → (Optional)Auth
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	listingService := deps.ListingService
	messageService := deps.MessageService
	moderationService := deps.ModerationService
	otpService := deps.OTPService
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
		listingService = &instrumentedListingService{ListingServiceInterface: listingService, metrics: deps.Metrics}
		messageService = &instrumentedMessageService{MessageServiceInterface: messageService, metrics: deps.Metrics}
		moderationService = &instrumentedModerationService{ModerationServiceInterface: moderationService, metrics: deps.Metrics}
		if otpService != nil {
			otpService = &instrumentedOTPService{OTPServiceInterface: otpService, metrics: deps.Metrics}
		}
	}

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService, listingService)
	listingHandler := NewListingHandler(listingService)
	messageHandler := NewMessageHandler(messageService)
	adminHandler := NewAdminHandler(moderationService)

	requireAuth := middleware.NewAuthMiddleware(deps.TokenManager)
	optionalAuth := middleware.NewOptionalAuthMiddleware(deps.TokenManager)
	requireAdmin := middleware.NewAdminMiddleware()
	generalLimit := deps.RateLimiter.GeneralMiddleware()
	authLimit := deps.RateLimiter.AuthMiddleware()

	// ヘルスチェック（レート制限の対象外）
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheusスクレイプエンドポイント
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証エンドポイント（認証専用レート制限） ---
	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	// --- 公開ルート（認証は任意） ---
	r.Group(func(r chi.Router) {
		r.Use(generalLimit)
		r.Use(optionalAuth)

		r.Get("/api/listings", listingHandler.List)
		r.Get("/api/listings/{id}", listingHandler.Get)
		r.Put("/api/listings/{id}/view", listingHandler.RecordView)

		r.Get("/api/users/{id}", userHandler.GetProfile)
		r.Get("/api/users/{id}/listings", userHandler.ListListings)
	})

	// --- 認証必須ルート ---
	r.Group(func(r chi.Router) {
		r.Use(generalLimit)
		r.Use(requireAuth)

		// プロフィール管理
		r.Get("/api/auth/me", authHandler.Me)
		r.Put("/api/auth/details", authHandler.UpdateDetails)
		r.Put("/api/auth/password", authHandler.UpdatePassword)
		r.Post("/api/auth/avatar", authHandler.UpdateAvatar)

		// 出品管理
		r.Post("/api/listings", listingHandler.Create)
		r.Put("/api/listings/{id}", listingHandler.Update)
		r.Delete("/api/listings/{id}", listingHandler.Delete)

		// メッセージ
		r.Route("/api/messages", func(r chi.Router) {
			r.Post("/", messageHandler.Send)
			r.Get("/conversations", messageHandler.Conversations)
			r.Get("/unread/count", messageHandler.UnreadCount)
			r.Put("/{id}/read", messageHandler.MarkRead)
			r.Get("/{listingID}/{userID}", messageHandler.Thread)
		})
	})

	// --- 管理者ルート ---
	r.Group(func(r chi.Router) {
		r.Use(generalLimit)
		r.Use(requireAuth)
		r.Use(requireAdmin)

		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/stats", adminHandler.GetStats)
			r.Get("/listings/pending", adminHandler.ListPending)
			r.Put("/listings/{id}/approve", adminHandler.Approve)
			r.Put("/listings/{id}/reject", adminHandler.Reject)
			r.Get("/users", adminHandler.ListUsers)
			r.Put("/users/{id}/deactivate", adminHandler.DeactivateUser)
			r.Put("/users/{id}/activate", adminHandler.ActivateUser)
		})
	})

	// --- 電話番号確認（Redis構成時のみ） ---
	if otpService != nil {
		otpHandler := NewOTPHandler(otpService)
		r.Group(func(r chi.Router) {
			r.With(deps.RateLimiter.OTPMiddleware()).Post("/api/otp/send", otpHandler.Send)
			r.With(authLimit).Post("/api/otp/verify", otpHandler.Verify)
		})
	}

	return r
}
