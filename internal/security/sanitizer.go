// Package security は録音本文の無害化と、外部メディアURLへのSSRF対策を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は文字起こしテキストからマークアップを除去する。
// 公開前の検証とフィード本文の表示の両方で使用される。
type TextSanitizer interface {
	// SanitizeText はすべてのタグを除去し、文字参照を通常の文字に戻したテキストを返す。
	// script/styleの中身は本文として残さない。
	SanitizeText(raw string) string
}

// transcriptSanitizer はTextSanitizerの実装。
// bluemondayのStrictPolicyはゴルーチンセーフなので共有して使う。
type transcriptSanitizer struct {
	policy *bluemonday.Policy
}

// NewTranscriptSanitizer はTextSanitizerを生成する。
func NewTranscriptSanitizer() *transcriptSanitizer {
	return &transcriptSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はタグを除去したプレーンテキストを返す。
// StrictPolicyは出力をエスケープするため、最後にアンエスケープして元の文字に戻す。
func (s *transcriptSanitizer) SanitizeText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return html.UnescapeString(s.policy.Sanitize(raw))
}
