package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxDisplayTextLength は画面に表示するプロバイダ由来メッセージの最大文字数。
const maxDisplayTextLength = 200

// TextSanitizer はOAuthプロバイダ等の外部入力を表示用プレーンテキストに変換する。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer は全てのタグを除去するStrictPolicyでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去し、空白を正規化して最大長で切り詰める。
// 出力はテンプレート側で再度エスケープされる前提のプレーンテキスト。
func (s *TextSanitizer) Clean(raw string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	cleaned := strings.Join(strings.Fields(stripped), " ")

	runes := []rune(cleaned)
	if len(runes) > maxDisplayTextLength {
		return string(runes[:maxDisplayTextLength])
	}
	return cleaned
}
