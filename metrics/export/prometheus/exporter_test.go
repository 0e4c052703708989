package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/store/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func scrape(t *testing.T, c prometheus.Collector) string {
	t.Helper()

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestCollectorExposesCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess: 7,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricResolveLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := scrape(t, c)
	for _, want := range []string{
		"gosession_login_success_total 7",
		"gosession_refresh_failure_total 0",
		`gosession_resolve_latency_seconds_bucket{le="0.005"} 1`,
		`gosession_resolve_latency_seconds_bucket{le="0.5"} 28`,
		`gosession_resolve_latency_seconds_bucket{le="+Inf"} 36`,
		"gosession_resolve_latency_seconds_count 36",
		"gosession_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestCollectorSkipsMissingHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	out := scrape(t, c)
	if strings.Contains(out, "gosession_resolve_latency_seconds_bucket") {
		t.Fatalf("histogram should be absent when latency is disabled:\n%s", out)
	}
}

func TestHandlerServesEngineMetrics(t *testing.T) {
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("k", 32))
	cfg.Tokens.LookupKey = []byte(strings.Repeat("l", 32))
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true

	engine, err := goSession.New().WithConfig(cfg).WithStore(memory.New()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	rec := httptest.NewRecorder()
	Handler(engine).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gosession_session_issued_total 0") {
		t.Fatalf("expected engine counters, got:\n%s", rec.Body.String())
	}
}
