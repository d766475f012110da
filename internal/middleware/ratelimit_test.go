package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/roadwatch/internal/model"
)

// --- GeneralMiddleware (API全般) のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     2, // 2 req/sec
		GeneralBurst:    5, // バースト5
		ReportRate:      1, // 未使用
		ReportBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handlerCallCount := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "user-1"))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    2, // バースト2
		ReportRate:      1,
		ReportBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト分（2回）は通る
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "user-rate-limit"))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3回目はレート制限に引っかかる
	req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-rate-limit"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfterHeader(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    1, // バースト1
		ReportRate:      1,
		ReportBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 1回目は通る
	req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-retry-after"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// 2回目は429になる
	req2 := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req2 = req2.WithContext(ContextWithUserID(req2.Context(), "user-retry-after"))
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)

	if w2.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w2.Result().StatusCode, http.StatusTooManyRequests)
	}

	retryAfter := w2.Result().Header.Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("expected Retry-After header to be present")
	}

	// Retry-Afterは数値（秒）であること
	retrySeconds, err := strconv.Atoi(retryAfter)
	if err != nil {
		t.Errorf("Retry-After header should be a number, got %q", retryAfter)
	}
	if retrySeconds < 1 {
		t.Errorf("Retry-After = %d, should be at least 1", retrySeconds)
	}
}

func TestRateLimitMiddleware_IsolatesUserRateLimits(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1, // 1 req/sec
		GeneralBurst:    1, // バースト1
		ReportRate:      1,
		ReportBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// ユーザーAの1回目は通る
	reqA := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	reqA = reqA.WithContext(ContextWithUserID(reqA.Context(), "user-A"))
	wA := httptest.NewRecorder()
	handler.ServeHTTP(wA, reqA)

	if wA.Result().StatusCode != http.StatusOK {
		t.Errorf("user-A first request: status = %d, want %d", wA.Result().StatusCode, http.StatusOK)
	}

	// ユーザーAの2回目は429
	reqA2 := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	reqA2 = reqA2.WithContext(ContextWithUserID(reqA2.Context(), "user-A"))
	wA2 := httptest.NewRecorder()
	handler.ServeHTTP(wA2, reqA2)

	if wA2.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("user-A second request: status = %d, want %d", wA2.Result().StatusCode, http.StatusTooManyRequests)
	}

	// ユーザーBの1回目は通る（ユーザーAのレートに影響されない）
	reqB := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	reqB = reqB.WithContext(ContextWithUserID(reqB.Context(), "user-B"))
	wB := httptest.NewRecorder()
	handler.ServeHTTP(wB, reqB)

	if wB.Result().StatusCode != http.StatusOK {
		t.Errorf("user-B first request: status = %d, want %d", wB.Result().StatusCode, http.StatusOK)
	}
}

func TestRateLimitMiddleware_NoUserID_Returns401(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without user ID")
	}))

	// コンテキストにユーザーIDがない場合は401
	req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- ReportMiddleware (危険報告) のテスト ---

func TestReportRateLimit_AllowsRequestsWithinLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     100, // 高い値（制限に引っかからないように）
		GeneralBurst:    200,
		ReportRate:      1, // 1 req/sec
		ReportBurst:     3, // バースト3
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.ReportMiddleware()

	handlerCallCount := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の3リクエストは全て通る
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/zones/report", nil)
		req = req.WithContext(ContextWithUserID(req.Context(), "user-report"))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 3 {
		t.Errorf("handler call count = %d, want 3", handlerCallCount)
	}
}

func TestReportRateLimit_Returns429WhenLimitExceeded(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     100,
		GeneralBurst:    200,
		ReportRate:      1, // 1 req/sec
		ReportBurst:     1, // バースト1
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.ReportMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// 1回目は通る
	req1 := httptest.NewRequest(http.MethodPost, "/api/zones/report", nil)
	req1 = req1.WithContext(ContextWithUserID(req1.Context(), "user-report-429"))
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req1)

	if w1.Result().StatusCode != http.StatusOK {
		t.Errorf("request 1: status = %d, want %d", w1.Result().StatusCode, http.StatusOK)
	}

	// 2回目は429
	req2 := httptest.NewRequest(http.MethodPost, "/api/zones/report", nil)
	req2 = req2.WithContext(ContextWithUserID(req2.Context(), "user-report-429"))
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)

	if w2.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("request 2: status = %d, want %d", w2.Result().StatusCode, http.StatusTooManyRequests)
	}

	retryAfter := w2.Result().Header.Get("Retry-After")
	if retryAfter == "" {
		t.Error("expected Retry-After header to be present")
	}
}

func TestReportRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		ReportRate:      1,
		ReportBurst:     1,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	generalMW := rl.GeneralMiddleware()
	reportMW := rl.ReportMiddleware()

	// General MWでリクエスト（バーストを消費）
	generalHandler := generalMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req1 := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req1 = req1.WithContext(ContextWithUserID(req1.Context(), "user-indep"))
	w1 := httptest.NewRecorder()
	generalHandler.ServeHTTP(w1, req1)

	// General limitは使い果たした。報告用limitはまだ使える
	reportHandler := reportMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req2 := httptest.NewRequest(http.MethodPost, "/api/zones/report", nil)
	req2 = req2.WithContext(ContextWithUserID(req2.Context(), "user-indep"))
	w2 := httptest.NewRecorder()
	reportHandler.ServeHTTP(w2, req2)

	if w2.Result().StatusCode != http.StatusOK {
		t.Errorf("report submission should still be allowed: status = %d, want %d",
			w2.Result().StatusCode, http.StatusOK)
	}
}

// --- 429レスポンスフォーマットのテスト ---

func TestRateLimitMiddleware_429ResponseIsJSON(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    1,
		ReportRate:      1,
		ReportBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト消費
	req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-json-test"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// 429レスポンス
	req2 := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req2 = req2.WithContext(ContextWithUserID(req2.Context(), "user-json-test"))
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)

	resp := w2.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body["code"] == "" {
		t.Error("expected 'code' field in error response")
	}
	if body["message"] == "" {
		t.Error("expected 'message' field in error response")
	}
	if body["category"] == "" {
		t.Error("expected 'category' field in error response")
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	cfg := RateLimiterConfig{
		GeneralRate:     2,
		GeneralBurst:    5,
		ReportRate:      1,
		ReportBurst:     10,
		CleanupInterval: 50 * time.Millisecond, // テスト用に短く
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	mw := rl.GeneralMiddleware()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// ユーザーのリクエストを発行してエントリを作成
	req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req = req.WithContext(ContextWithUserID(req.Context(), "user-cleanup"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// エントリが存在することを確認
	if rl.GeneralLimiterCount() == 0 {
		t.Fatal("expected at least one limiter entry")
	}

	// TTLはCleanupIntervalの2倍（100ms）。200ms待てば削除されるはず
	time.Sleep(200 * time.Millisecond)

	if count := rl.GeneralLimiterCount(); count != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got %d", count)
	}
}

// --- ミドルウェアチェーンとの統合テスト ---

func TestRateLimitMiddleware_InChainWithSessionAndCORS(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "rate-limit-session" {
				return &model.Session{
					ID:        "rate-limit-session",
					UserID:    "user-rate-chain",
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	cfg := RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		ReportRate:      1,
		ReportBurst:     10,
		CleanupInterval: 1 * time.Minute,
	}

	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	sessionMW := NewSessionMiddleware(repo)
	corsMW := NewCORSMiddleware("http://localhost:3000")
	rateMW := rl.GeneralMiddleware()

	// CORS -> Session -> RateLimit -> Handler
	handler := corsMW(sessionMW(rateMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
	}))))

	// GETリクエスト：2回通る
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "rate-limit-session"})
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	// 3回目は429
	req3 := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
	req3.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "rate-limit-session"})
	w3 := httptest.NewRecorder()

	handler.ServeHTTP(w3, req3)

	if w3.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want %d", w3.Result().StatusCode, http.StatusTooManyRequests)
	}
}

// --- デフォルト設定値のテスト ---

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 { // 120/60 = 2
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.ReportRate == 0 {
		t.Error("ReportRate should not be 0")
	}
	if cfg.ReportBurst != 10 {
		t.Errorf("ReportBurst = %d, want 10", cfg.ReportBurst)
	}
}
