package utils

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ParticipantKey 是儲存在 context 中的參與者名稱的鍵
type contextKey string

const ParticipantKey contextKey = "participant"

// ParticipantFromContext 從 context 中提取已解碼的參與者名稱
func ParticipantFromContext(ctx context.Context) (string, error) {
	name, ok := ctx.Value(ParticipantKey).(string)
	if !ok || name == "" {
		return "", errors.New("participant name not found in context")
	}
	return name, nil
}

// DecodeLatin1 把標頭的原始位元組逐一對應成字元（單位元組映射），
// 保留客戶端送出的每一個位元組值，不做多位元組文字解碼。
func DecodeLatin1(raw string) string {
	runes := make([]rune, len(raw))
	for i := 0; i < len(raw); i++ {
		runes[i] = rune(raw[i])
	}
	return string(runes)
}

// tagPattern 匹配 HTML 樣式的標籤
var tagPattern = regexp.MustCompile(`<[^>]*>`)

// CleanText 移除文字中的標記並修剪前後空白。
// 每個使用者提供的 text 欄位在儲存前都要經過這裡，重複呼叫結果不變。
func CleanText(text string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(text, ""))
}
