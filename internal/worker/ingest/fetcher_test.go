package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/roadwatch/internal/model"
)

// --- モック定義 ---

type mockUpserter struct {
	alerts    []*model.Alert
	upsertErr error
	created   bool
}

func (m *mockUpserter) UpsertBySourceGUID(_ context.Context, alert *model.Alert) (bool, error) {
	if m.upsertErr != nil {
		return false, m.upsertErr
	}
	m.alerts = append(m.alerts, alert)
	return m.created, nil
}

type passthroughSanitizer struct{}

func (passthroughSanitizer) SanitizeText(s string) string { return s }

// allowAllSSRF はテスト用のSSRF検証モック。
// httptestサーバーはループバックで動作するため、検証をバイパスして
// 通常のHTTPクライアントを返す。
type allowAllSSRF struct {
	validateErr error
}

func (m *allowAllSSRF) ValidateURL(_ string) error { return m.validateErr }

func (m *allowAllSSRF) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(upserter *mockUpserter, guard *allowAllSSRF) *Fetcher {
	return NewFetcher(upserter, passthroughSanitizer{}, guard, nil, testLogger(),
		5*time.Second, 1024*1024, 10*time.Minute)
}

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>道路交通アドバイザリ</title>
    <item>
      <title>国道16号で事故による通行止め</title>
      <description>復旧まで数時間かかる見込みです。</description>
      <guid>advisory-1001</guid>
      <category>事故</category>
      <category>location:国道16号</category>
      <pubDate>Mon, 18 Aug 2025 09:00:00 +0900</pubDate>
    </item>
    <item>
      <title>大雪警報発令中</title>
      <description>チェーン規制が実施されています。</description>
      <guid>advisory-1002</guid>
      <category>気象</category>
    </item>
    <item>
      <title>GUIDのないエントリ</title>
      <description>同一性判定不可のためスキップされる。</description>
    </item>
  </channel>
</rss>`

// --- テスト ---

func TestFetch_ParsesAndUpsertsAlerts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("ETag", `"etag-v1"`)
		fmt.Fprint(w, sampleRSS)
	}))
	defer ts.Close()

	upserter := &mockUpserter{created: true}
	fetcher := newTestFetcher(upserter, &allowAllSSRF{})
	source := &Source{URL: ts.URL}

	if err := fetcher.Fetch(context.Background(), source); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// GUIDを持つ2件のみがUPSERTされる
	if len(upserter.alerts) != 2 {
		t.Fatalf("upserted alerts = %d, want 2", len(upserter.alerts))
	}

	first := upserter.alerts[0]
	if first.Type != model.AlertTypeTraffic {
		t.Errorf("Type = %q, want traffic", first.Type)
	}
	if first.Location != "国道16号" {
		t.Errorf("Location = %q, want 国道16号", first.Location)
	}
	if first.SourceGUID != "advisory-1001" {
		t.Errorf("SourceGUID = %q, want advisory-1001", first.SourceGUID)
	}
	if !first.IsVerified {
		t.Error("advisory alerts should be verified")
	}

	second := upserter.alerts[1]
	if second.Type != model.AlertTypeWeather {
		t.Errorf("Type = %q, want weather", second.Type)
	}
	if second.Severity != model.AlertSeverityCritical {
		t.Errorf("Severity = %q, want critical (警報キーワード)", second.Severity)
	}
	if second.Location != "広域" {
		t.Errorf("Location = %q, want 広域", second.Location)
	}

	// 成功後の状態: エラーリセット、ETag保存、次回時刻設定
	if source.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", source.ConsecutiveErrors)
	}
	if source.ETag != `"etag-v1"` {
		t.Errorf("ETag = %q, want saved", source.ETag)
	}
	if !source.NextFetchAt.After(time.Now()) {
		t.Error("expected NextFetchAt to be in the future")
	}
}

func TestFetch_NotModified_SkipsUpsert(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != `"etag-v1"` {
			t.Errorf("If-None-Match = %q, want etag to be sent", r.Header.Get("If-None-Match"))
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer ts.Close()

	upserter := &mockUpserter{}
	fetcher := newTestFetcher(upserter, &allowAllSSRF{})
	source := &Source{URL: ts.URL, ETag: `"etag-v1"`}

	if err := fetcher.Fetch(context.Background(), source); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(upserter.alerts) != 0 {
		t.Errorf("upserted alerts = %d, want 0", len(upserter.alerts))
	}
	if !source.NextFetchAt.After(time.Now()) {
		t.Error("expected NextFetchAt to be rescheduled")
	}
}

func TestFetch_NotFound_StopsSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	fetcher := newTestFetcher(&mockUpserter{}, &allowAllSSRF{})
	source := &Source{URL: ts.URL}

	if err := fetcher.Fetch(context.Background(), source); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if !source.Stopped {
		t.Error("expected source to be stopped on 404")
	}
}

func TestFetch_ServerError_AppliesBackoff(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	fetcher := newTestFetcher(&mockUpserter{}, &allowAllSSRF{})
	source := &Source{URL: ts.URL}

	if err := fetcher.Fetch(context.Background(), source); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if source.Stopped {
		t.Error("5xx should apply backoff, not stop")
	}
	if source.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", source.ConsecutiveErrors)
	}
}

func TestFetch_InvalidXML_CountsParseFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer ts.Close()

	fetcher := newTestFetcher(&mockUpserter{}, &allowAllSSRF{})
	source := &Source{URL: ts.URL}

	// パース失敗は取り込みエラーとしない
	if err := fetcher.Fetch(context.Background(), source); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if source.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", source.ConsecutiveErrors)
	}
	if source.Stopped {
		t.Error("single parse failure should not stop the source")
	}
}

func TestFetch_SSRFValidationFailure_StopsSource(t *testing.T) {
	fetcher := newTestFetcher(&mockUpserter{}, &allowAllSSRF{
		validateErr: fmt.Errorf("blocked IP address: 127.0.0.1"),
	})
	source := &Source{URL: "http://127.0.0.1/rss"}

	err := fetcher.Fetch(context.Background(), source)
	if err == nil {
		t.Fatal("expected error for SSRF validation failure")
	}
	if !source.Stopped {
		t.Error("expected source to be stopped on SSRF validation failure")
	}
}

func TestFetch_UpsertFailure_ContinuesWithRemaining(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleRSS)
	}))
	defer ts.Close()

	upserter := &mockUpserter{upsertErr: fmt.Errorf("db down")}
	fetcher := newTestFetcher(upserter, &allowAllSSRF{})
	source := &Source{URL: ts.URL}

	// UPSERT失敗でもフェッチ自体は成功扱い（次サイクルで再取り込み）
	if err := fetcher.Fetch(context.Background(), source); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if source.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", source.ConsecutiveErrors)
	}
}
