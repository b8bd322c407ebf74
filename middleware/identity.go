package middleware

import (
	"context"
	"net/http"

	"batepapo/backend/utils"
)

// Identity 從 User 標頭提取請求者的參與者名稱並放入 context。
// 標頭的原始位元組用單位元組映射解碼，確保名稱和客戶端送出的完全一致。
// 標頭缺漏不在這裡擋下，各 handler 依自己的契約回應。
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get("User"); raw != "" {
			name := utils.DecodeLatin1(raw)
			ctx := context.WithValue(r.Context(), utils.ParticipantKey, name)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}
