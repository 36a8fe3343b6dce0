package capture

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/murmur/internal/model"
)

// State は録音セッションの状態を表す。
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
	// StatePublished は公開済みの終端状態。以降の遷移はすべて拒否される。
	StatePublished State = "published"
)

// Reason は状態遷移の理由を表す。UIへのイベントに含まれる。
type Reason string

const (
	ReasonRecordingStarted Reason = "recording_started"
	ReasonRecordingPaused  Reason = "recording_paused"
	ReasonRecordingResumed Reason = "recording_resumed"
	ReasonRecordingStopped Reason = "recording_stopped"
	ReasonDiscarded        Reason = "recording_discarded"
	ReasonPublished        Reason = "recommendation_published"
)

// Snapshot はセッションのある時点での状態。
type Snapshot struct {
	SessionID    string `json:"session_id,omitempty"`
	State        State  `json:"state"`
	Elapsed      int    `json:"elapsed_seconds"`
	ElapsedLabel string `json:"elapsed"`
	Transcript   string `json:"transcript"`
	AudioRef     string `json:"audio_ref,omitempty"`
}

// Session は1回分の録音の状態機械。
//
//	Idle --Start--> Recording --Pause--> Paused --Resume--> Recording
//	Recording/Paused --Stop--> Stopped --Discard--> Idle
//	Stopped --publish--> Published（終端）
//
// 経過秒数はRecording中のティックでのみ進む。Paused中はティック源自体を停止する。
// 遷移と競合して届いた古いティックは世代番号で破棄する。
type Session struct {
	id         string
	transcript *Transcript
	ticker     TickSource
	events     model.EventSink

	mu         sync.Mutex
	state      State
	elapsed    int
	generation uint64
	audioRef   string
}

// NewSession はIdle状態の新しいセッションを生成する。
func NewSession(ticker TickSource, events model.EventSink) *Session {
	if events == nil {
		events = model.DiscardEvents{}
	}
	return &Session{
		id:         uuid.New().String(),
		transcript: NewTranscript(),
		ticker:     ticker,
		events:     events,
		state:      StateIdle,
	}
}

// ID はセッションIDを返す。
func (s *Session) ID() string {
	return s.id
}

// Transcript はセッションが所有する文字起こしバッファを返す。
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// State は現在の状態を返す。
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed は録音中に経過した秒数を返す。
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// AudioRef は録音された音声の参照を返す。
func (s *Session) AudioRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioRef
}

// SetAudioRef は録音コラボレーターが保存した音声の参照を紐付ける。
// 公開済みのセッションには紐付けられない。
func (s *Session) SetAudioRef(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePublished {
		return model.NewPreconditionViolationError("attach_audio", string(s.state))
	}
	s.audioRef = ref
	return nil
}

// Snapshot は現在の状態のスナップショットを返す。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		SessionID:    s.id,
		State:        s.state,
		Elapsed:      s.elapsed,
		ElapsedLabel: FormatElapsed(s.elapsed),
		AudioRef:     s.audioRef,
	}
	s.mu.Unlock()

	snap.Transcript = s.transcript.Text()
	return snap
}

// Start は録音を開始する。Idle状態でのみ有効で、経過秒数を0に戻す。
// Stopped状態からの再開はできない（破棄するか新しいセッションを作る）。
func (s *Session) Start() error {
	return s.transition("start", []State{StateIdle}, StateRecording, ReasonRecordingStarted, func() {
		s.elapsed = 0
		s.startTicking()
	})
}

// Pause は録音を一時停止する。Recording状態でのみ有効。
func (s *Session) Pause() error {
	return s.transition("pause", []State{StateRecording}, StatePaused, ReasonRecordingPaused, func() {
		s.stopTicking()
	})
}

// Resume は一時停止中の録音を再開する。Paused状態でのみ有効。
func (s *Session) Resume() error {
	return s.transition("resume", []State{StatePaused}, StateRecording, ReasonRecordingResumed, func() {
		s.startTicking()
	})
}

// Stop は録音を停止する。RecordingまたはPaused状態で有効。
func (s *Session) Stop() error {
	return s.transition("stop", []State{StateRecording, StatePaused}, StateStopped, ReasonRecordingStopped, func() {
		s.stopTicking()
	})
}

// Discard は停止済みの録音を破棄してIdleに戻す。文字起こしと音声参照も消去する。
func (s *Session) Discard() error {
	return s.transition("discard", []State{StateStopped}, StateIdle, ReasonDiscarded, func() {
		s.elapsed = 0
		s.audioRef = ""
		s.transcript.Clear()
	})
}

// markPublished は投稿成功後にセッションを終端状態にする。
func (s *Session) markPublished() error {
	return s.transition("publish", []State{StateStopped}, StatePublished, ReasonPublished, nil)
}

// transition は現在の状態がfromのいずれかであればtoへ遷移する。
// 条件を満たさない場合は状態を変えずにPreconditionViolationを返す。
func (s *Session) transition(op string, from []State, to State, reason Reason, apply func()) error {
	s.mu.Lock()
	if !stateIn(s.state, from) {
		current := s.state
		s.mu.Unlock()
		return model.NewPreconditionViolationError(op, string(current))
	}

	s.generation++
	if apply != nil {
		apply()
	}
	s.state = to
	elapsed := s.elapsed
	s.mu.Unlock()

	s.events.Publish(model.Event{
		Type:      model.EventSessionState,
		SessionID: s.id,
		State:     string(to),
		Reason:    string(reason),
		Elapsed:   FormatElapsed(elapsed),
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// startTicking はs.muを保持した状態で呼び出すこと。
func (s *Session) startTicking() {
	if s.ticker == nil {
		return
	}
	gen := s.generation
	s.ticker.Start(func() { s.tick(gen) })
}

// stopTicking はs.muを保持した状態で呼び出すこと。
func (s *Session) stopTicking() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
}

// tick は経過秒数を1秒進める。開始時の世代と一致しない、
// またはRecording以外の状態で届いたティックは無視する。
func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.elapsed++
	elapsed := s.elapsed
	s.mu.Unlock()

	s.events.Publish(model.Event{
		Type:      model.EventSessionTick,
		SessionID: s.id,
		State:     string(StateRecording),
		Elapsed:   FormatElapsed(elapsed),
		Timestamp: time.Now().UTC(),
	})
}

func stateIn(state State, candidates []State) bool {
	for _, c := range candidates {
		if state == c {
			return true
		}
	}
	return false
}
