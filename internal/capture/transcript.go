// Package capture は録音セッションの状態管理と公開前の検証を提供する。
package capture

import (
	"strings"
	"sync"
	"unicode"
)

// Transcript は録音に付随する文字起こしテキストを保持する。
// セッションの状態に関係なく編集でき、破棄操作以外で自動的に消去されることはない。
// 長さの上限はここでは設けない。
type Transcript struct {
	mu   sync.Mutex
	text string
}

// NewTranscript は空のTranscriptを生成する。
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append は文字起こし結果を末尾に追記する。
// 既存テキストと断片の間に空白がない場合は半角スペースを1つ補う。
// 空白のみの断片は無視する。
func (t *Transcript) Append(fragment string) {
	if strings.TrimSpace(fragment) == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.text != "" && !endsWithSpace(t.text) && !startsWithSpace(fragment) {
		t.text += " "
	}
	t.text += fragment
}

// Set はテキスト全体を置き換える。ユーザーによる手動修正で使う。
func (t *Transcript) Set(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = text
}

// Clear はテキストを消去する。
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.text = ""
}

// Text は現在のテキストを返す。
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text
}

func endsWithSpace(s string) bool {
	r := []rune(s)
	return len(r) > 0 && unicode.IsSpace(r[len(r)-1])
}

func startsWithSpace(s string) bool {
	for _, r := range s {
		return unicode.IsSpace(r)
	}
	return false
}
