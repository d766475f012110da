package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// counterValue は指定メトリクスのカウンタ値を取得する。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) (float64, bool) {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() == name {
			var sum float64
			for _, m := range mf.GetMetric() {
				sum += m.GetCounter().GetValue()
			}
			return sum, true
		}
	}
	return 0, false
}

// TestRecordLoginSuccess_IncrementsCounter はログイン成功カウンタが増加することを検証する。
func TestRecordLoginSuccess_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess("password")
	c.RecordLoginSuccess("google")

	val, found := counterValue(t, reg, "roadwatch_login_success_total")
	if !found {
		t.Fatal("roadwatch_login_success_total metric not found")
	}
	if val != 2 {
		t.Errorf("login_success_total = %v, want 2", val)
	}
}

// TestRecordLoginFailure_IncrementsCounter はログイン失敗カウンタが増加することを検証する。
func TestRecordLoginFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginFailure("password", "INVALID_CREDENTIALS")

	val, found := counterValue(t, reg, "roadwatch_login_fail_total")
	if !found {
		t.Fatal("roadwatch_login_fail_total metric not found")
	}
	if val != 1 {
		t.Errorf("login_fail_total = %v, want 1", val)
	}
}

// TestRecordProfileSyncFailure_IncrementsCounter はプロファイル保存失敗カウンタを検証する。
func TestRecordProfileSyncFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProfileSyncFailure()
	c.RecordProfileSyncFailure()
	c.RecordProfileSyncFailure()

	val, found := counterValue(t, reg, "roadwatch_profile_sync_fail_total")
	if !found {
		t.Fatal("roadwatch_profile_sync_fail_total metric not found")
	}
	if val != 3 {
		t.Errorf("profile_sync_fail_total = %v, want 3", val)
	}
}

// TestRecordAdvisoriesUpserted_AddsCount はアドバイザリ数が加算されることを検証する。
func TestRecordAdvisoriesUpserted_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAdvisoriesUpserted(5)
	c.RecordAdvisoriesUpserted(3)

	val, found := counterValue(t, reg, "roadwatch_advisories_upserted_total")
	if !found {
		t.Fatal("roadwatch_advisories_upserted_total metric not found")
	}
	if val != 8 {
		t.Errorf("advisories_upserted_total = %v, want 8", val)
	}
}

// TestRecordIngestLatency_ObservesHistogram はレイテンシヒストグラムへの記録を検証する。
func TestRecordIngestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordIngestLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "roadwatch_advisory_ingest_latency_seconds" {
			found = true
			count := mf.GetMetric()[0].GetHistogram().GetSampleCount()
			if count != 1 {
				t.Errorf("sample count = %d, want 1", count)
			}
		}
	}
	if !found {
		t.Error("roadwatch_advisory_ingest_latency_seconds metric not found")
	}
}

// TestRecordHTTPStatus_LabelsByCode はステータスコード別のラベル付けを検証する。
func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(500)

	val, found := counterValue(t, reg, "roadwatch_http_status_total")
	if !found {
		t.Fatal("roadwatch_http_status_total metric not found")
	}
	if val != 3 {
		t.Errorf("http_status_total = %v, want 3", val)
	}
}

// TestCollectorImplementsInterface はCollectorがMetricsCollectorを実装することを検証する。
func TestCollectorImplementsInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}
