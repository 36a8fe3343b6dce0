// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は録音・再生・カード操作のメトリクスを収集する。
// capture.MetricsRecorder、playback.Metrics、card.Metricsを実装する。
type Collector struct {
	sessionTransitions *prometheus.CounterVec
	recordingDuration  prometheus.Histogram
	submissions        *prometheus.CounterVec
	playbackStarts     prometheus.Counter
	playbackEvictions  prometheus.Counter
	mediaUnavailable   prometheus.Counter
	reactions          *prometheus.CounterVec
	flagDismissals     *prometheus.CounterVec
	feedCards          prometheus.Gauge
	feedLoadFailures   prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "murmur_session_transitions_total",
			Help: "録音セッションの状態遷移数（理由別）",
		}, []string{"reason"}),
		recordingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "murmur_recording_duration_seconds",
			Help:    "停止時点の録音時間（秒）",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 300},
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "murmur_submissions_total",
			Help: "おすすめの公開試行数（結果別）",
		}, []string{"result"}),
		playbackStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "murmur_playback_starts_total",
			Help: "再生開始の合計数",
		}),
		playbackEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "murmur_playback_evictions_total",
			Help: "他のカードの再生開始により停止された再生の合計数",
		}),
		mediaUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "murmur_media_unavailable_total",
			Help: "音声参照を解決できなかった回数",
		}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "murmur_reaction_toggles_total",
			Help: "リアクションの切り替え数（種別・方向別）",
		}, []string{"kind", "direction"}),
		flagDismissals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "murmur_flag_dismissals_total",
			Help: "通報ダイアログを閉じた回数（結果別）",
		}, []string{"outcome", "flagged"}),
		feedCards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "murmur_feed_cards",
			Help: "直近に読み込んだフィードのカード数",
		}),
		feedLoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "murmur_feed_load_failures_total",
			Help: "フィード読み込み失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "murmur_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.sessionTransitions,
		c.recordingDuration,
		c.submissions,
		c.playbackStarts,
		c.playbackEvictions,
		c.mediaUnavailable,
		c.reactions,
		c.flagDismissals,
		c.feedCards,
		c.feedLoadFailures,
		c.httpStatus,
	)

	return c
}

// RecordSessionTransition は録音セッションの状態遷移を記録する。
func (c *Collector) RecordSessionTransition(reason string) {
	c.sessionTransitions.WithLabelValues(reason).Inc()
}

// RecordRecordingDuration は停止時の録音時間を記録する。
func (c *Collector) RecordRecordingDuration(seconds int) {
	c.recordingDuration.Observe(float64(seconds))
}

// RecordSubmission は公開試行の結果を記録する。
func (c *Collector) RecordSubmission(result string) {
	c.submissions.WithLabelValues(result).Inc()
}

// RecordPlaybackStart は再生開始を記録する。
func (c *Collector) RecordPlaybackStart() {
	c.playbackStarts.Inc()
}

// RecordPlaybackEviction は再生の横取りを記録する。
func (c *Collector) RecordPlaybackEviction() {
	c.playbackEvictions.Inc()
}

// RecordMediaUnavailable は音声解決の失敗を記録する。
func (c *Collector) RecordMediaUnavailable() {
	c.mediaUnavailable.Inc()
}

// RecordReaction はリアクションの切り替えを記録する。
func (c *Collector) RecordReaction(kind string, active bool) {
	direction := "off"
	if active {
		direction = "on"
	}
	c.reactions.WithLabelValues(kind, direction).Inc()
}

// RecordFlagDismissal は通報ダイアログを閉じた結果を記録する。
func (c *Collector) RecordFlagDismissal(outcome string, flagged bool) {
	c.flagDismissals.WithLabelValues(outcome, strconv.FormatBool(flagged)).Inc()
}

// RecordFeedLoad はフィードの読み込み結果を記録する。
func (c *Collector) RecordFeedLoad(cards int, err error) {
	if err != nil {
		c.feedLoadFailures.Inc()
		return
	}
	c.feedCards.Set(float64(cards))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
