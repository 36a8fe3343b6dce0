// Package disclosure は長いおすすめ本文の折りたたみ表示を決定する。
package disclosure

import (
	"strings"

	"github.com/rivo/uniseg"
)

// DefaultThreshold は折りたたみを行う書記素クラスタ数のしきい値。
const DefaultThreshold = 150

// Ellipsis は折りたたみ時に末尾へ付与する文字列。
const Ellipsis = "..."

// Control は本文の下に表示する操作を表す。
type Control string

const (
	ControlNone     Control = "none"
	ControlExpand   Control = "expand"
	ControlCollapse Control = "collapse"
)

// Rendered は表示すべき本文と操作の組。
type Rendered struct {
	Text      string  `json:"text"`
	Truncated bool    `json:"truncated"`
	Control   Control `json:"control"`
}

// Policy は本文の長さに応じて表示内容を決める。
// 長さは書記素クラスタ単位で数えるため、結合文字や絵文字の途中で切れることはない。
type Policy struct {
	Threshold int
}

// NewPolicy はPolicyを生成する。threshold が0以下の場合はDefaultThresholdを使う。
func NewPolicy(threshold int) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Policy{Threshold: threshold}
}

// Render は本文と展開状態から表示内容を返す。
func (p Policy) Render(text string, expanded bool) Rendered {
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	head, over := cut(text, threshold)
	switch {
	case !over:
		return Rendered{Text: text, Control: ControlNone}
	case expanded:
		return Rendered{Text: text, Control: ControlCollapse}
	default:
		return Rendered{Text: head + Ellipsis, Truncated: true, Control: ControlExpand}
	}
}

// Length は本文の書記素クラスタ数を返す。
func Length(text string) int {
	return uniseg.GraphemeClusterCount(text)
}

// cut は先頭n個の書記素クラスタを返す。textがn個を超える場合にoverがtrueになる。
func cut(text string, n int) (head string, over bool) {
	var b strings.Builder
	rest := text
	state := -1
	for i := 0; i < n && rest != ""; i++ {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		b.WriteString(cluster)
	}
	return b.String(), rest != ""
}
