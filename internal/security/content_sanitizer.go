// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー報告（リスクゾーン・アラート）の
// テキストと、外部アドバイザリフィード由来の本文をサニタイズし、
// 保存データへのマークアップ混入を防止する。
// bluemondayライブラリのStrictPolicyで全てのタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// ユーザー報告の保存前およびアドバイザリ取り込み時に使用される。
type ContentSanitizerService interface {
	// SanitizeText は入力から全てのHTMLマークアップを除去し、
	// プレーンテキストを返す。HTMLエンティティは復号され、
	// 連続する空白は1つに畳み込まれる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(s string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは許可タグを一切持たないため、script・iframe・style等の
// 危険なタグを含む全てのマークアップが除去される。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力から全てのHTMLマークアップを除去し、プレーンテキストを返す。
func (s *contentSanitizer) SanitizeText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは残存テキストをエンティティ化するため復号する
	unescaped := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(unescaped), " ")
}
