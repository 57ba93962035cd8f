package vigilant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIngest records every payload POSTed to it and lets a test classify
// each request's response, mirroring spec.md §8's "fake endpoint" scenarios.
type fakeIngest struct {
	mu       sync.Mutex
	payloads []map[string]any
	status   int
}

func newFakeIngest() *fakeIngest {
	return &fakeIngest{status: http.StatusOK}
}

func (f *fakeIngest) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var parsed map[string]any
		_ = json.NewDecoder(r.Body).Decode(&parsed)

		f.mu.Lock()
		f.payloads = append(f.payloads, parsed)
		status := f.status
		f.mu.Unlock()

		w.WriteHeader(status)
	}))
}

func (f *fakeIngest) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeIngest) setStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *fakeIngest) payload(i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[i]
}

// testConfig returns a UserConfig pointed at srv with fast, test-sized
// intervals and autocapture disabled (swapping os.Stdout/os.Stderr process-
// wide would race with the test runner's own output).
func testConfig(srv *httptest.Server) UserConfig {
	return UserConfig{
		Name:               "svc",
		Token:              "tk",
		Endpoint:           strings.TrimPrefix(srv.URL, "http://"),
		Insecure:           true,
		Autocapture:        Bool(false),
		Passthrough:        Bool(false),
		MaxLogBatchSize:    1000,
		LogBatchInterval:   10 * time.Millisecond,
		MetricInterval:     50 * time.Millisecond,
		MetricEpsilon:      5 * time.Millisecond,
		MetricSendInterval: 10 * time.Millisecond,
	}
}

// TestInitShutdownLifecycle covers P2 (at-most-one-instance): a second Init
// before Shutdown fails with ErrAlreadyInitialized, and once Shutdown has
// cleared the singleton, Init succeeds again.
func TestInitShutdownLifecycle(t *testing.T) {
	ingest := newFakeIngest()
	srv := ingest.server()
	defer srv.Close()

	require.NoError(t, Init(testConfig(srv)))
	assert.Equal(t, ErrAlreadyInitialized, Init(testConfig(srv)))
	require.NoError(t, Shutdown())

	// Shutdown is idempotent when no instance is held.
	require.NoError(t, Shutdown())

	require.NoError(t, Init(testConfig(srv)))
	require.NoError(t, Shutdown())
}

// TestFacadeFailsWithoutInit covers the ErrNotInitialized branch of every
// facade entry point when no singleton is currently held.
func TestFacadeFailsWithoutInit(t *testing.T) {
	assert.Equal(t, ErrNotInitialized, LogInfo(context.Background(), "hello"))
	assert.Equal(t, ErrNotInitialized, Counter("req", 1, nil))
	assert.Equal(t, ErrNotInitialized, GaugeSet("q", 1, nil))
	assert.Equal(t, ErrNotInitialized, Histogram("latency_ms", 1, nil))

	_, err := MetricsRegistry()
	assert.Equal(t, ErrNotInitialized, err)
	_, err = InstanceID()
	assert.Equal(t, ErrNotInitialized, err)
}

// TestScenario1LogPayloadShape is spec.md §8 scenario 1: Init, log one
// line, and expect the fake ingest to receive exactly the documented
// payload shape.
func TestScenario1LogPayloadShape(t *testing.T) {
	ingest := newFakeIngest()
	srv := ingest.server()
	defer srv.Close()

	cfg := testConfig(srv)
	require.NoError(t, Init(cfg))
	defer Shutdown()

	require.NoError(t, LogInfo(context.Background(), "hello"))

	require.Eventually(t, func() bool { return ingest.count() == 1 }, time.Second, 5*time.Millisecond)

	payload := ingest.payload(0)
	assert.Equal(t, "tk", payload["token"])
	assert.Equal(t, "logs", payload["type"])

	logs, ok := payload["logs"].([]any)
	require.True(t, ok)
	require.Len(t, logs, 1)

	entry := logs[0].(map[string]any)
	assert.Equal(t, "hello", entry["body"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, map[string]any{"service.name": "svc"}, entry["attributes"])
}

// TestScenario5NoopSendsNothing is spec.md §8 scenario 5: with noop set,
// every facade call is accepted but nothing ever reaches the ingest.
func TestScenario5NoopSendsNothing(t *testing.T) {
	ingest := newFakeIngest()
	srv := ingest.server()
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.Noop = true
	require.NoError(t, Init(cfg))
	defer Shutdown()

	for i := 0; i < 100; i++ {
		require.NoError(t, LogInfo(context.Background(), "line"))
		require.NoError(t, Counter("req", 1, nil))
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, ingest.count())
}

// TestScenario6InvalidTokenBoundsShutdown is spec.md §8 scenario 6: once
// the ingest starts returning 401, only the first batch attempt is
// observed and Shutdown still completes promptly rather than hanging.
func TestScenario6InvalidTokenBoundsShutdown(t *testing.T) {
	ingest := newFakeIngest()
	ingest.setStatus(http.StatusUnauthorized)
	srv := ingest.server()
	defer srv.Close()

	cfg := testConfig(srv)
	require.NoError(t, Init(cfg))

	require.NoError(t, LogInfo(context.Background(), "first"))
	require.Eventually(t, func() bool { return ingest.count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, LogInfo(context.Background(), "second"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, ingest.count(), "no further batches should be sent once the token is marked invalid")

	start := time.Now()
	require.NoError(t, Shutdown())
	assert.Less(t, time.Since(start), 2*time.Second, "shutdown must not hang waiting on a latched-off sender")
}

// TestDrainOnShutdown is spec.md §8 P3: every log produced before Shutdown
// reaches the fake endpoint in a loss-free run (queue capacity not
// exceeded).
func TestDrainOnShutdown(t *testing.T) {
	ingest := newFakeIngest()
	srv := ingest.server()
	defer srv.Close()

	cfg := testConfig(srv)
	cfg.LogBatchInterval = time.Hour // force everything through the Stop-time drain
	require.NoError(t, Init(cfg))

	const n = 20
	for i := 0; i < n; i++ {
		require.NoError(t, LogInfo(context.Background(), "line"))
	}
	require.NoError(t, Shutdown())

	total := 0
	for i := 0; i < ingest.count(); i++ {
		logs, _ := ingest.payload(i)["logs"].([]any)
		total += len(logs)
	}
	assert.Equal(t, n, total)
}
