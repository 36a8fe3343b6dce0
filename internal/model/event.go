package model

import "time"

// EventType はUIへ通知するエンジンイベントの種別。
type EventType string

const (
	EventSessionState    EventType = "session.state"
	EventSessionTick     EventType = "session.tick"
	EventTranscript      EventType = "session.transcript"
	EventPlaybackState   EventType = "playback.state"
	EventReactionChanged EventType = "reaction.changed"
	EventFlagChanged     EventType = "flag.changed"
)

// Event はUIに配信されるエンジンの状態変化を表す。
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	CardID    string    `json:"card_id,omitempty"`
	State     string    `json:"state,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Elapsed   string    `json:"elapsed,omitempty"`
	Text      string    `json:"text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink はエンジンの状態変化をUIへ届けるインターフェース。
type EventSink interface {
	Publish(event Event)
}

// DiscardEvents はイベントを破棄するEventSink。テストや未接続時に使う。
type DiscardEvents struct{}

// Publish はイベントを破棄する。
func (DiscardEvents) Publish(Event) {}
