package logbatch

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

func newBatcherFor(t *testing.T, srv *httptest.Server, cfg Config) *Batcher {
	t.Helper()
	endpoint := strings.TrimPrefix(srv.URL, "http://")
	cfg.Sender = transport.New(transport.Config{Endpoint: endpoint, Token: "tk", Insecure: true})
	cfg.Metrics = telemetry.New(prometheus.NewRegistry())
	b := New(cfg)
	t.Cleanup(func() {
		b.Stop()
		cfg.Sender.Close()
	})
	return b
}

func TestBatcherFlushesOnSize(t *testing.T) {
	var gotBatches [][]any
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var parsed map[string]any
		_ = readJSON(r, &parsed)
		mu.Lock()
		gotBatches = append(gotBatches, parsed["logs"].([]any))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newBatcherFor(t, srv, Config{MaxBatchSize: 2, BatchInterval: time.Hour})
	b.Start()

	b.Add(types.Log{Body: "a"})
	b.Add(types.Log{Body: "b"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(gotBatches) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, gotBatches[0], 2)
}

func TestBatcherFlushesOnInterval(t *testing.T) {
	hit := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case hit <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newBatcherFor(t, srv, Config{MaxBatchSize: 1000, BatchInterval: 20 * time.Millisecond})
	b.Start()
	b.Add(types.Log{Body: "solo"})

	select {
	case <-hit:
	case <-time.After(time.Second):
		t.Fatal("expected interval flush")
	}
}

func TestBatcherDrainsOnStop(t *testing.T) {
	var count int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var parsed map[string]any
		_ = readJSON(r, &parsed)
		mu.Lock()
		count += len(parsed["logs"].([]any))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpoint := strings.TrimPrefix(srv.URL, "http://")
	sender := transport.New(transport.Config{Endpoint: endpoint, Token: "tk", Insecure: true})
	defer sender.Close()
	b := New(Config{MaxBatchSize: 1000, BatchInterval: time.Hour, Sender: sender, Metrics: telemetry.New(prometheus.NewRegistry())})
	b.Start()

	b.Add(types.Log{Body: "x"})
	b.Add(types.Log{Body: "y"})
	b.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestBatcherRetainsBatchOnServerError(t *testing.T) {
	var firstSeen int
	var mu sync.Mutex
	fail := true
	success := make(chan []any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var parsed map[string]any
		_ = readJSON(r, &parsed)
		logs, _ := parsed["logs"].([]any)

		mu.Lock()
		shouldFail := fail
		if shouldFail {
			firstSeen = len(logs)
		}
		mu.Unlock()

		if shouldFail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		select {
		case success <- logs:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newBatcherFor(t, srv, Config{MaxBatchSize: 1000, BatchInterval: 20 * time.Millisecond})
	b.Start()

	b.Add(types.Log{Body: "a"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstSeen == 1
	}, time.Second, 5*time.Millisecond, "first flush attempt should carry only the item added so far")

	b.Add(types.Log{Body: "b"})
	mu.Lock()
	fail = false
	mu.Unlock()

	select {
	case logs := <-success:
		assert.Len(t, logs, 2, "the retried flush should carry the original item plus the one added after the failure")
	case <-time.After(time.Second):
		t.Fatal("expected a successful retry carrying the retained batch")
	}
}

func TestBatcherStopsSendingAfterInvalidToken(t *testing.T) {
	var requests int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := newBatcherFor(t, srv, Config{MaxBatchSize: 1, BatchInterval: time.Hour})
	b.Start()

	b.Add(types.Log{Body: "a"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return requests == 1
	}, time.Second, 5*time.Millisecond)

	b.Add(types.Log{Body: "b"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, requests, "no further requests should be sent once the token is marked invalid")
}
