package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/murmur/internal/model"
)

// Submitter は検証済みドラフトを投稿先へ送信するコラボレーターのインターフェース。
// 送信失敗時にエンジンは再送しない。
type Submitter interface {
	Submit(ctx context.Context, draft model.RecommendationDraft) (model.RecommendationID, error)
}

// MetricsRecorder は録音・公開に関するメトリクスを記録するインターフェース。
type MetricsRecorder interface {
	RecordSessionTransition(reason string)
	RecordRecordingDuration(seconds int)
	RecordSubmission(result string)
}

// PublishResult は公開に成功したおすすめの情報。
type PublishResult struct {
	RecommendationID model.RecommendationID   `json:"recommendation_id"`
	Draft            model.RecommendationDraft `json:"draft"`
}

// Service は録音画面1つ分の録音セッションを管理する。
// 同時に保持するセッションは1つで、公開に成功すると次のStartで新しいセッションを作る。
type Service struct {
	validator *Validator
	submitter Submitter
	newTicker func() TickSource
	events    model.EventSink
	metrics   MetricsRecorder
	logger    *slog.Logger

	mu      sync.Mutex
	current *Session
}

// ServiceConfig はServiceの依存関係をまとめた構造体。
type ServiceConfig struct {
	Validator *Validator
	Submitter Submitter
	// NewTicker はセッションごとのティック源を生成する。nilの場合は1秒間隔を使う。
	NewTicker func() TickSource
	Events    model.EventSink
	Metrics   MetricsRecorder
	Logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(cfg ServiceConfig) *Service {
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewSecondTicker
	}
	if cfg.Events == nil {
		cfg.Events = model.DiscardEvents{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Validator == nil {
		cfg.Validator = NewValidator(nil)
	}
	return &Service{
		validator: cfg.Validator,
		submitter: cfg.Submitter,
		newTicker: cfg.NewTicker,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Start は録音を開始する。セッションがない場合は新しく作成する。
// 停止済みのセッションが残っている場合はPRECONDITION_VIOLATIONを返す。
func (s *Service) Start() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.ensureSessionLocked()
	if err := session.Start(); err != nil {
		return session.Snapshot(), err
	}

	s.logger.Info("録音を開始しました", slog.String("session_id", session.ID()))
	s.recordTransition(ReasonRecordingStarted)
	return session.Snapshot(), nil
}

// Pause は録音を一時停止する。
func (s *Service) Pause() (Snapshot, error) {
	return s.apply("pause", ReasonRecordingPaused, (*Session).Pause)
}

// Resume は一時停止中の録音を再開する。
func (s *Service) Resume() (Snapshot, error) {
	return s.apply("resume", ReasonRecordingResumed, (*Session).Resume)
}

// Stop は録音を停止する。
func (s *Service) Stop() (Snapshot, error) {
	snap, err := s.apply("stop", ReasonRecordingStopped, (*Session).Stop)
	if err == nil && s.metrics != nil {
		s.metrics.RecordRecordingDuration(snap.Elapsed)
	}
	return snap, err
}

// Discard は停止済みの録音を破棄する。
func (s *Service) Discard() (Snapshot, error) {
	return s.apply("discard", ReasonDiscarded, (*Session).Discard)
}

// AppendTranscript は文字起こしコラボレーターから届いたテキストを追記する。
func (s *Service) AppendTranscript(fragment string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.ensureSessionLocked()
	session.Transcript().Append(fragment)
	return session.Snapshot()
}

// SetTranscript はユーザーが編集したテキストで置き換える。
func (s *Service) SetTranscript(text string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.ensureSessionLocked()
	session.Transcript().Set(text)
	return session.Snapshot()
}

// AttachAudio は録音された音声の参照をセッションに紐付ける。
func (s *Service) AttachAudio(ref string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.ensureSessionLocked()
	if err := session.SetAudioRef(ref); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// Status は現在のセッションの状態を返す。セッションがない場合はIdleを返す。
func (s *Service) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Snapshot{State: StateIdle, ElapsedLabel: FormatElapsed(0)}
	}
	return s.current.Snapshot()
}

// Publish はセッションを検証し、投稿コラボレーターへ送信する。
// 検証エラーの場合は送信せずにそのまま返す。
// 送信に失敗した場合はSUBMIT_FAILEDを返し、セッションはStoppedのまま保持する。
// 送信に成功した場合はセッションを終端状態にし、次のStartで新しいセッションを開始できる。
func (s *Service) Publish(ctx context.Context, meta model.Metadata) (*PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.current
	if session == nil {
		return nil, model.NewEmptySessionError(string(StateIdle))
	}

	draft, err := s.validator.Accept(session, meta)
	if err != nil {
		s.logger.Warn("公開の検証で拒否されました",
			slog.String("session_id", session.ID()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	id, err := s.submitter.Submit(ctx, draft)
	if err != nil {
		s.logger.Error("おすすめの投稿に失敗しました",
			slog.String("session_id", session.ID()),
			slog.String("draft_id", draft.ID),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.RecordSubmission("failure")
		}
		return nil, model.NewSubmitFailedError(err)
	}

	if err := session.markPublished(); err != nil {
		return nil, err
	}
	s.current = nil

	s.logger.Info("おすすめを公開しました",
		slog.String("session_id", session.ID()),
		slog.String("draft_id", draft.ID),
		slog.String("recommendation_id", string(id)),
		slog.String("category", string(draft.Category)),
		slog.Int("duration_seconds", draft.DurationSeconds),
	)
	if s.metrics != nil {
		s.metrics.RecordSubmission("success")
	}
	s.recordTransition(ReasonPublished)

	return &PublishResult{RecommendationID: id, Draft: draft}, nil
}

// apply は現在のセッションに遷移を適用する。セッションがない場合はIdleとして扱う。
func (s *Service) apply(op string, reason Reason, fn func(*Session) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return Snapshot{State: StateIdle, ElapsedLabel: FormatElapsed(0)},
			model.NewPreconditionViolationError(op, string(StateIdle))
	}

	if err := fn(s.current); err != nil {
		s.logger.Warn("許可されていない録音状態の遷移です",
			slog.String("session_id", s.current.ID()),
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		return s.current.Snapshot(), err
	}

	s.logger.Info("録音状態が変化しました",
		slog.String("session_id", s.current.ID()),
		slog.String("reason", string(reason)),
	)
	s.recordTransition(reason)
	return s.current.Snapshot(), nil
}

// ensureSessionLocked は現在のセッションを返し、なければIdle状態で作成する。
// s.muを保持した状態で呼び出すこと。
func (s *Service) ensureSessionLocked() *Session {
	if s.current == nil {
		s.current = NewSession(s.newTicker(), s.events)
	}
	return s.current
}

func (s *Service) recordTransition(reason Reason) {
	if s.metrics != nil {
		s.metrics.RecordSessionTransition(string(reason))
	}
}
