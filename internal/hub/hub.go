// Package hub はエンジンのイベントをWebSocketでUIへ配信し、UIからの文字起こしを受け付ける。
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/murmur/internal/model"
)

// broadcastBuffer は配信待ちイベントのバッファサイズ。
const broadcastBuffer = 256

// TranscriptSink はUIから届いた文字起こしの断片を受け取るインターフェース。
type TranscriptSink interface {
	AppendTranscript(fragment string)
}

// Hub は接続中のクライアントを管理し、イベントを全クライアントへ配信する。
// Publishはエンジンの操作を止めないようにブロックせず、バッファが溢れたイベントは破棄する。
type Hub struct {
	transcripts TranscriptSink
	logger      *slog.Logger

	broadcast  chan model.Event
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]struct{}

	dropped atomic.Int64
}

var _ model.EventSink = (*Hub)(nil)

// New はHubを生成する。transcriptsがnilの場合は受信した文字起こしを無視する。
func New(transcripts TranscriptSink, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		transcripts: transcripts,
		logger:      logger,
		broadcast:   make(chan model.Event, broadcastBuffer),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]struct{}),
	}
}

// SetTranscriptSink は文字起こしの受け取り先を設定する。起動時の配線で使う。
func (h *Hub) SetTranscriptSink(sink TranscriptSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transcripts = sink
}

// Publish はイベントを配信キューに入れる。model.EventSinkを実装する。
func (h *Hub) Publish(event model.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.dropped.Add(1)
		h.logger.Warn("イベント配信キューが満杯のため破棄しました",
			slog.String("type", string(event.Type)),
		)
	}
}

// Dropped は破棄したイベントの累計数を返す。
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// ClientCount は接続中のクライアント数を返す。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run はコンテキストがキャンセルされるまで登録・解除・配信を処理する。
// 終了時はすべてのクライアントの送信キューを閉じる。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("WebSocketクライアントが接続しました", slog.String("client_id", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocketクライアントが切断しました", slog.String("client_id", c.id))

		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("イベントのエンコードに失敗しました", slog.String("error", err.Error()))
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// 受信が追いつかないクライアントは切断する
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// handleInbound はクライアントから届いたメッセージを処理する。
func (h *Hub) handleInbound(c *Client, msg inboundMessage) {
	switch msg.Type {
	case inboundTranscriptAppend:
		h.mu.RLock()
		sink := h.transcripts
		h.mu.RUnlock()
		if sink != nil && msg.Text != "" {
			sink.AppendTranscript(msg.Text)
		}
	default:
		h.logger.Debug("未知のメッセージ種別を無視しました",
			slog.String("client_id", c.id),
			slog.String("type", msg.Type),
		)
	}
}

// TranscriptSinkFunc は関数をTranscriptSinkとして使うためのアダプター。
type TranscriptSinkFunc func(fragment string)

// AppendTranscript はf(fragment)を呼び出す。
func (f TranscriptSinkFunc) AppendTranscript(fragment string) {
	f(fragment)
}
