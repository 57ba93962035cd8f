// Package transport is the stateless HTTP sender (component B): it POSTs a
// JSON payload to the ingestion endpoint and classifies the response into
// the small outcome taxonomy the batchers act on. Grounded on the original
// SDK's requests-based _send_batch/_send_metrics helpers
// (original_source/vigilant/metric_batcher.py, metric_sender.py).
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Outcome classifies the result of a single send.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeInvalidToken Outcome = "invalid_token"
	OutcomeServerError  Outcome = "server_error"
	OutcomeNetworkError Outcome = "network_error"
)

const requestTimeout = 10 * time.Second

// TokenPlacement selects how the bearer token is carried on the request.
// spec.md §9 notes the original SDK is inconsistent about this across
// historical variants; a deployment picks one and sticks with it.
type TokenPlacement int

const (
	// TokenInBody embeds "token" as a top-level field of the JSON payload.
	TokenInBody TokenPlacement = iota
	// TokenInHeader carries the token via the x-vigilant-token header and
	// omits it from the payload body.
	TokenInHeader
)

// Sender POSTs JSON payloads to a single ingestion endpoint. It is
// stateless across calls beyond the underlying *http.Client and is safe
// for concurrent use by multiple batchers.
type Sender struct {
	endpoint  string
	token     string
	insecure  bool
	placement TokenPlacement
	client    *http.Client
}

// Config configures a Sender.
type Config struct {
	Endpoint  string
	Token     string
	Insecure  bool
	Placement TokenPlacement
}

// New builds a Sender. When cfg.Insecure is set, requests are made over
// plain http:// and TLS verification is disabled for the rare deployment
// that terminates TLS elsewhere.
func New(cfg Config) *Sender {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		if base.TLSClientConfig == nil {
			base.TLSClientConfig = &tls.Config{}
		}
		base.TLSClientConfig.InsecureSkipVerify = true
	}

	return &Sender{
		endpoint:  cfg.Endpoint,
		token:     cfg.Token,
		insecure:  cfg.Insecure,
		placement: cfg.Placement,
		client: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(base),
		},
	}
}

// Close releases the underlying HTTP client's idle connections.
func (s *Sender) Close() {
	s.client.CloseIdleConnections()
}

func (s *Sender) scheme() string {
	if s.insecure {
		return "http"
	}
	return "https"
}

// Send POSTs payload (augmented with the token per the configured
// placement) to path on the ingestion endpoint and classifies the result.
func (s *Sender) Send(ctx context.Context, path string, payload map[string]any) Outcome {
	body := payload
	headers := map[string]string{"Content-Type": "application/json"}

	switch s.placement {
	case TokenInHeader:
		headers["x-vigilant-token"] = s.token
	default:
		body = withToken(payload, s.token)
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return OutcomeServerError
	}

	url := fmt.Sprintf("%s://%s%s", s.scheme(), s.endpoint, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return OutcomeNetworkError
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return OutcomeNetworkError
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return OutcomeInvalidToken
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return OutcomeOK
	default:
		return OutcomeServerError
	}
}

func withToken(payload map[string]any, token string) map[string]any {
	out := make(map[string]any, len(payload)+1)
	out["token"] = token
	for k, v := range payload {
		out[k] = v
	}
	return out
}
