package metricsender

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilant-run/vigilant-go/internal/telemetry"
	"github.com/vigilant-run/vigilant-go/internal/transport"
	"github.com/vigilant-run/vigilant-go/internal/types"
)

func readJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func newSenderFor(t *testing.T, srv *httptest.Server, interval time.Duration) *Sender {
	t.Helper()
	endpoint := strings.TrimPrefix(srv.URL, "http://")
	transportSender := transport.New(transport.Config{Endpoint: endpoint, Token: "tk", Insecure: true})
	s := New(Config{BatchInterval: interval, Sender: transportSender, Metrics: telemetry.New(prometheus.NewRegistry())})
	t.Cleanup(func() {
		s.Stop()
		transportSender.Close()
	})
	return s
}

func sampleBatch() types.AggregatedBatch {
	return types.AggregatedBatch{
		IntervalStart: time.Unix(0, 0),
		Counters: []types.CounterMessage{
			{Name: "requests", Value: 3},
		},
	}
}

func TestSenderFlushesOnInterval(t *testing.T) {
	var mu sync.Mutex
	var gotCounters []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var parsed map[string]any
		_ = readJSON(r, &parsed)
		mu.Lock()
		gotCounters = parsed["metrics_counters"].([]any)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newSenderFor(t, srv, 20*time.Millisecond)
	s.Start()
	s.Add(sampleBatch())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotCounters) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSenderDropsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("empty batch should never be sent")
	}))
	defer srv.Close()

	s := newSenderFor(t, srv, 10*time.Millisecond)
	s.Start()
	s.Add(types.AggregatedBatch{})
	time.Sleep(50 * time.Millisecond)
}

func TestSenderDrainsOnStop(t *testing.T) {
	var mu sync.Mutex
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpoint := strings.TrimPrefix(srv.URL, "http://")
	transportSender := transport.New(transport.Config{Endpoint: endpoint, Token: "tk", Insecure: true})
	defer transportSender.Close()

	s := New(Config{BatchInterval: time.Hour, Sender: transportSender, Metrics: telemetry.New(prometheus.NewRegistry())})
	s.Start()

	s.Add(sampleBatch())
	s.Add(sampleBatch())
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, requests)
}

func TestSenderStopsAfterInvalidToken(t *testing.T) {
	var mu sync.Mutex
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := newSenderFor(t, srv, 10*time.Millisecond)
	s.Start()
	s.Add(sampleBatch())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return requests == 1
	}, time.Second, 5*time.Millisecond)

	s.Add(sampleBatch())
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests)
}
