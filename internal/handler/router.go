package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/murmur/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetrics
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 録音・公開
	CaptureService CaptureServiceInterface

	// フィード
	CardFeed CardFeedInterface

	// UIへのイベント配信（WebSocket）
	EventStream http.Handler

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → ClientID → Logging → RateLimit(General)
//
// /health、/metrics、/ws はログとレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewClientIDMiddleware())

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	// WebSocketはコネクションをハイジャックするため、ログのラッパーを通さない
	if deps.EventStream != nil {
		r.Handle("/ws", deps.EventStream)
	}

	captureHandler := NewCaptureHandler(deps.CaptureService)
	cardHandler := NewCardHandler(deps.CardFeed)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPMetrics))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// 録音画面
		r.Route("/api/capture", func(r chi.Router) {
			r.Get("/", captureHandler.Status)
			r.Get("/categories", captureHandler.Categories)
			r.Post("/start", captureHandler.Start)
			r.Post("/pause", captureHandler.Pause)
			r.Post("/resume", captureHandler.Resume)
			r.Post("/stop", captureHandler.Stop)
			r.Post("/discard", captureHandler.Discard)
			r.Post("/transcript", captureHandler.AppendTranscript)
			r.Put("/transcript", captureHandler.SetTranscript)
			r.Put("/audio", captureHandler.AttachAudio)

			// POST /api/capture/publish - 公開（公開専用レート制限を追加）
			publish := http.HandlerFunc(captureHandler.Publish)
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.PublishMiddleware()).Post("/publish", publish)
			} else {
				r.Post("/publish", publish)
			}
		})

		// フィード
		r.Route("/api/cards", func(r chi.Router) {
			r.Get("/", cardHandler.ListCards)
			r.Post("/reload", cardHandler.Reload)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cardHandler.GetCard)
				r.Post("/play", cardHandler.Play)
				r.Post("/stop", cardHandler.Stop)
				r.Post("/like", cardHandler.ToggleLike)
				r.Post("/heart", cardHandler.ToggleHeart)
				r.Post("/flag", cardHandler.OpenFlag)
				r.Post("/flag/dismiss", cardHandler.DismissFlag)
				r.Put("/expanded", cardHandler.SetExpanded)
				r.Post("/image-error", cardHandler.ImageError)
			})
		})
	})

	return r
}
