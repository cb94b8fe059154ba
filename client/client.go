// Package client assembles the Transport, Cache, Coalescer and Modifier
// layers into the single nfhttp.Capability applications use, mirroring the
// inside-out composition order required by the pipeline: Modifier wraps
// Coalescer wraps Cache wraps Transport, plus an optional Resilience layer
// directly in front of the Transport.
package client

import (
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sandrolain/nfhttp"
	"github.com/sandrolain/nfhttp/cache"
	"github.com/sandrolain/nfhttp/cache/leveldbstore"
	"github.com/sandrolain/nfhttp/coalescer"
	"github.com/sandrolain/nfhttp/metrics"
	"github.com/sandrolain/nfhttp/modifier"
	"github.com/sandrolain/nfhttp/resilience"
	"github.com/sandrolain/nfhttp/transport"
)

// metadataFile is the leveldb directory name inside a client's cache
// directory. Payload blobs live alongside it as sibling files.
const metadataFile = ".nfhttp"

// config collects every ClientOption's effect before CreateClient wires the
// pipeline together.
type config struct {
	userAgent      string
	transport      transport.Config
	cacheOpts      []cache.Option
	resilience     *resilience.Config
	recorder       metrics.Recorder
	logger         *slog.Logger
	requestMod     modifier.RequestModifierFunc
	responseMod    modifier.ResponseModifierFunc
}

// ClientOption configures a Client at construction time.
type ClientOption func(*config)

// WithUserAgent overrides the User-Agent header requests default to.
func WithUserAgent(ua string) ClientOption {
	return func(c *config) { c.userAgent = ua }
}

// WithRequestTimeout bounds every individual Transport round trip.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *config) { c.transport.RequestTimeout = d }
}

// WithProxy routes requests through the given proxy URL.
func WithProxy(proxyURL string) ClientOption {
	return func(c *config) {
		if u, err := url.Parse(proxyURL); err == nil {
			c.transport.ProxyURL = u
		}
	}
}

// WithBasicAuth attaches proactive HTTP Basic credentials to every request.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *config) {
		c.transport.BasicAuthUsername = username
		c.transport.BasicAuthPassword = password
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Intended for
// local development and testing only.
func WithInsecureSkipVerify() ClientOption {
	return func(c *config) { c.transport.InsecureSkipVerify = true }
}

// WithResilience layers the given retry/circuit-breaker policies directly in
// front of the Transport.
func WithResilience(rc resilience.Config) ClientOption {
	return func(c *config) { c.resilience = &rc }
}

// WithRecorder sets the metrics.Recorder the Transport reports to.
// Defaults to metrics.DefaultRecorder (a no-op) when not set.
func WithRecorder(r metrics.Recorder) ClientOption {
	return func(c *config) { c.recorder = r }
}

// WithLogger sets the ambient slog.Logger shared across every layer.
// Defaults to slog.Default() when not set.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *config) { c.logger = l }
}

// WithCacheOption forwards additional cache.Option values (e.g.
// cache.WithVarySeparation, cache.WithEncryption) to the Cache layer.
func WithCacheOption(opts ...cache.Option) ClientOption {
	return func(c *config) { c.cacheOpts = append(c.cacheOpts, opts...) }
}

// WithRequestModifier installs the Modifier layer's request hook.
func WithRequestModifier(fn modifier.RequestModifierFunc) ClientOption {
	return func(c *config) { c.requestMod = fn }
}

// WithResponseModifier installs the Modifier layer's response hook.
func WithResponseModifier(fn modifier.ResponseModifierFunc) ClientOption {
	return func(c *config) { c.responseMod = fn }
}

// StandardCacheLocation returns a per-platform, user-writable directory
// suitable for CreateClient's cacheDir argument, created on demand.
func StandardCacheLocation() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "nfhttp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// CreateClient assembles the full pipeline rooted at cacheDir, persisting
// cache metadata to a leveldb store named .nfhttp inside cacheDir and
// payload bodies as sibling files, and returns it as a single
// nfhttp.Capability.
func CreateClient(cacheDir, userAgent string, opts ...ClientOption) (nfhttp.Capability, error) {
	cfg := &config{
		userAgent: userAgent,
		transport: transport.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.recorder == nil {
		cfg.recorder = metrics.DefaultRecorder
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	cfg.transport.Recorder = cfg.recorder
	cfg.transport.Logger = cfg.logger
	cfg.transport.UserAgent = cfg.userAgent

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}

	meta, err := leveldbstore.New(filepath.Join(cacheDir, metadataFile))
	if err != nil {
		return nil, err
	}
	blobs := cache.NewDiskBlobStore(cacheDir)

	var inner nfhttp.Capability = transport.New(cfg.transport)
	if cfg.resilience != nil {
		inner = resilience.New(inner, *cfg.resilience, resilience.WithLogger(cfg.logger))
	}

	cacheOpts := append([]cache.Option{cache.WithLogger(cfg.logger)}, cfg.cacheOpts...)
	inner = cache.New(inner, meta, blobs, cacheOpts...)
	inner = coalescer.New(inner, cfg.logger)

	var modOpts []modifier.Option
	if cfg.requestMod != nil {
		modOpts = append(modOpts, modifier.WithRequestModifier(cfg.requestMod))
	}
	if cfg.responseMod != nil {
		modOpts = append(modOpts, modifier.WithResponseModifier(cfg.responseMod))
	}
	modOpts = append(modOpts, modifier.WithLogger(cfg.logger))
	inner = modifier.New(inner, modOpts...)

	return inner, nil
}
