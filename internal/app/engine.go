package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/murmur/internal/capture"
	"github.com/hitoshi/murmur/internal/card"
	"github.com/hitoshi/murmur/internal/config"
	"github.com/hitoshi/murmur/internal/database"
	"github.com/hitoshi/murmur/internal/disclosure"
	"github.com/hitoshi/murmur/internal/feedsource"
	"github.com/hitoshi/murmur/internal/handler"
	"github.com/hitoshi/murmur/internal/hub"
	"github.com/hitoshi/murmur/internal/media"
	"github.com/hitoshi/murmur/internal/metrics"
	"github.com/hitoshi/murmur/internal/middleware"
	"github.com/hitoshi/murmur/internal/playback"
	"github.com/hitoshi/murmur/internal/repository"
	"github.com/hitoshi/murmur/internal/security"
	"github.com/hitoshi/murmur/internal/submission"
	"github.com/hitoshi/murmur/internal/worker/refresh"
)

// dbPingTimeout は起動時のDB接続確認のタイムアウト。
const dbPingTimeout = 5 * time.Second

// Options はEngineの差し替え可能な依存関係。ゼロ値で本番用の構成になる。
type Options struct {
	// URLGuard はメディアとRSSフィードの取得に使うSSRFガード。nilの場合はsecurity.NewURLGuard()。
	URLGuard security.URLGuard
	// Coordinator は再生の排他制御。nilの場合はプロセス共通のplayback.Default()。
	Coordinator *playback.Coordinator
	// Registry はメトリクスの登録先。nilの場合は新しいレジストリを作成する。
	Registry *prometheus.Registry
}

// Engine はサーバーモードで動作するコンポーネント一式を保持する。
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	// ctx はWebSocket接続とバックグラウンド処理の寿命。Closeでキャンセルされる。
	ctx    context.Context
	cancel context.CancelFunc

	db          *sql.DB
	registry    *prometheus.Registry
	collector   *metrics.Collector
	hub         *hub.Hub
	capture     *capture.Service
	feed        *card.Feed
	rateLimiter *middleware.RateLimiter
	handler     http.Handler
}

// NewEngine は設定に従って全依存関係をワイヤリングしたEngineを生成する。
// DATABASE_URLが設定されている場合はPostgreSQLを、そうでなければFEED_URLのRSSをフィードデータソースにする。
func NewEngine(cfg *config.Config, logger *slog.Logger, opts Options) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{cfg: cfg, logger: logger}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	// 1. メトリクス
	e.registry = opts.Registry
	if e.registry == nil {
		e.registry = prometheus.NewRegistry()
		e.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	e.collector = metrics.NewCollector(e.registry)

	// 2. セキュリティ
	guard := opts.URLGuard
	if guard == nil {
		guard = security.NewURLGuard()
	}
	sanitizer := security.NewTranscriptSanitizer()

	// 3. UIへのイベント配信
	e.hub = hub.New(nil, logger)

	// 4. 録音・公開
	submitter := submission.NewClient(
		&http.Client{Timeout: cfg.SubmitTimeout},
		cfg.SubmitURL, cfg.SubmitRatePerMin, logger,
	)
	e.capture = capture.NewService(capture.ServiceConfig{
		Validator: capture.NewValidator(sanitizer),
		Submitter: submitter,
		Events:    e.hub,
		Metrics:   e.collector,
		Logger:    logger,
	})
	e.hub.SetTranscriptSink(hub.TranscriptSinkFunc(func(fragment string) {
		e.capture.AppendTranscript(fragment)
	}))

	// 5. 再生
	coordinator := opts.Coordinator
	if coordinator == nil {
		coordinator = playback.Default()
	}
	coordinator.SetMetrics(e.collector)

	resolver, err := media.NewHTTPResolver(cfg.MediaBaseURL, guard, logger, cfg.MediaTimeout, cfg.MediaMaxSize)
	if err != nil {
		e.cancel()
		return nil, fmt.Errorf("failed to create media resolver: %w", err)
	}

	// 6. フィードデータソース
	source, err := e.openFeedSource(guard, sanitizer)
	if err != nil {
		e.cancel()
		return nil, err
	}
	e.feed = card.NewFeed(source, card.Config{
		Coordinator:         coordinator,
		Resolver:            resolver,
		Events:              e.hub,
		Policy:              disclosure.NewPolicy(cfg.TextTruncateThreshold),
		ImplicitFlagConfirm: cfg.FlagImplicitDismissConfirms,
		Metrics:             e.collector,
		Logger:              logger,
	})

	// 7. ルーター
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート制限はreq/min単位なのでreq/secに変換する
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	}
	if cfg.RateLimitPublish > 0 {
		rateLimiterCfg.PublishRate = rate.Limit(float64(cfg.RateLimitPublish) / 60.0)
	}
	e.rateLimiter = middleware.NewRateLimiter(rateLimiterCfg)

	deps := &handler.RouterDeps{
		Logger:            logger,
		HTTPMetrics:       e.collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       e.rateLimiter,
		CaptureService:    e.capture,
		CardFeed:          e.feed,
		EventStream:       e.hub.Handler(e.ctx, cfg.CORSAllowedOrigin),
		MetricsHandler:    metrics.Handler(e.registry),
	}
	if e.db != nil {
		deps.HealthChecker = e.db
	}
	e.handler = handler.NewRouter(deps)

	return e, nil
}

// openFeedSource は設定に応じたフィードデータソースを開く。
func (e *Engine) openFeedSource(guard security.URLGuard, sanitizer security.TextSanitizer) (card.FeedSource, error) {
	if !e.cfg.UsesDatabase() {
		e.logger.Info("RSSフィードをデータソースとして使用します", slog.String("feed_url", e.cfg.FeedURL))
		return feedsource.NewRSSSource(
			e.cfg.FeedURL, guard, sanitizer, e.logger,
			e.cfg.FeedTimeout, e.cfg.FeedMaxSize,
		), nil
	}

	db, err := database.Open(e.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	e.db = db
	e.logger.Info("データベースに接続しました")

	return repository.NewPostgresCardRepo(db, e.cfg.FeedViewerID, e.cfg.FeedLimit), nil
}

// Handler はHTTPハンドラーを返す。
func (e *Engine) Handler() http.Handler {
	return e.handler
}

// Start はイベント配信を開始し、フィードを初回読み込みする。
// FEED_REFRESH_INTERVALが正の場合は定期的な再読み込みも開始する。
// 初回読み込みの失敗は起動を止めず、UIからの再読み込みに任せる。
func (e *Engine) Start(ctx context.Context) {
	go e.hub.Run(e.ctx)

	if err := e.feed.Load(ctx); err != nil {
		e.logger.Warn("起動時のフィード読み込みに失敗しました", slog.String("error", err.Error()))
	}

	if e.cfg.FeedRefreshInterval > 0 {
		scheduler := refresh.NewScheduler(e.feed, e.logger, e.cfg.FeedRefreshInterval)
		go scheduler.Start(e.ctx)
	}
}

// Hub はUIへのイベント配信ハブを返す。
func (e *Engine) Hub() *hub.Hub {
	return e.hub
}

// Close はEngineが保持するリソースを解放する。
func (e *Engine) Close() {
	e.cancel()
	e.feed.Close()
	e.rateLimiter.Stop()
	if e.db != nil {
		e.db.Close()
	}
}
