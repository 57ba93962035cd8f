package vigilant

import (
	"time"

	"github.com/vigilant-run/vigilant-go/internal/aggregator"
	"github.com/vigilant-run/vigilant-go/internal/logbatch"
	"github.com/vigilant-run/vigilant-go/internal/metricsender"
	"github.com/vigilant-run/vigilant-go/internal/transport"
)

// TokenPlacement selects how the auth token is carried on each request.
// spec.md §9 notes the original SDK is inconsistent about this across
// historical variants; a deployment picks one and sticks with it — treat
// whichever your ingestion server accepts as authoritative.
type TokenPlacement int

const (
	// TokenInBody embeds "token" as a top-level field of the JSON payload.
	// This is the default.
	TokenInBody TokenPlacement = iota
	// TokenInHeader carries the token via the x-vigilant-token header.
	TokenInHeader
)

// UserConfig is the set of fields a caller may override at Init. Any field
// left at its zero value takes the default listed in the table below
// (spec.md §6); Passthrough and Autocapture use pointers so "unset" can be
// distinguished from "explicitly false".
type UserConfig struct {
	Name        string            // default "backend"
	Token       string            // required
	Endpoint    string            // default "ingress.vigilant.run"
	Insecure    bool              // default false
	Passthrough *bool             // default true
	Autocapture *bool             // default true
	Noop        bool              // default false
	Attributes  map[string]string // default {}

	TokenPlacement TokenPlacement

	MaxLogBatchSize    int
	LogBatchInterval   time.Duration
	MetricInterval     time.Duration
	MetricEpsilon      time.Duration
	MetricSendInterval time.Duration
}

// config is UserConfig merged over defaults; the rest of the package works
// with this rather than re-checking zero values everywhere.
type config struct {
	name        string
	token       string
	endpoint    string
	insecure    bool
	passthrough bool
	autocapture bool
	noop        bool
	attributes  map[string]string

	tokenPlacement transport.TokenPlacement

	maxLogBatchSize    int
	logBatchInterval   time.Duration
	metricInterval     time.Duration
	metricEpsilon      time.Duration
	metricSendInterval time.Duration
}

func mergeConfig(u UserConfig) config {
	cfg := config{
		name:               "backend",
		endpoint:           "ingress.vigilant.run",
		passthrough:        true,
		autocapture:        true,
		attributes:         map[string]string{},
		maxLogBatchSize:    logbatch.DefaultMaxBatchSize,
		logBatchInterval:   logbatch.DefaultBatchInterval,
		metricInterval:     aggregator.DefaultInterval,
		metricEpsilon:      aggregator.DefaultEpsilon,
		metricSendInterval: metricsender.DefaultBatchInterval,
	}

	if u.Name != "" {
		cfg.name = u.Name
	}
	cfg.token = u.Token
	if u.Endpoint != "" {
		cfg.endpoint = u.Endpoint
	}
	cfg.insecure = u.Insecure
	if u.Passthrough != nil {
		cfg.passthrough = *u.Passthrough
	}
	if u.Autocapture != nil {
		cfg.autocapture = *u.Autocapture
	}
	cfg.noop = u.Noop
	for k, v := range u.Attributes {
		cfg.attributes[k] = v
	}

	if u.TokenPlacement == TokenInHeader {
		cfg.tokenPlacement = transport.TokenInHeader
	} else {
		cfg.tokenPlacement = transport.TokenInBody
	}

	if u.MaxLogBatchSize > 0 {
		cfg.maxLogBatchSize = u.MaxLogBatchSize
	}
	if u.LogBatchInterval > 0 {
		cfg.logBatchInterval = u.LogBatchInterval
	}
	if u.MetricInterval > 0 {
		cfg.metricInterval = u.MetricInterval
	}
	if u.MetricEpsilon > 0 {
		cfg.metricEpsilon = u.MetricEpsilon
	}
	if u.MetricSendInterval > 0 {
		cfg.metricSendInterval = u.MetricSendInterval
	}

	return cfg
}

// Bool is a small convenience for populating UserConfig.Passthrough /
// UserConfig.Autocapture, which are pointers so "unset" can be
// distinguished from "explicitly false".
func Bool(v bool) *bool { return &v }
