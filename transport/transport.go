// Package transport is the asynchronous core of the pipeline: it turns an
// nfhttp.Request into bytes on the wire and an *nfhttp.Response, built on
// net/http's own connection-pooling RoundTripper rather than a hand-rolled
// socket state machine — the same choice the reference implementation this
// package is modeled on makes.
package transport

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	"github.com/sandrolain/nfhttp"
	"github.com/sandrolain/nfhttp/metrics"
)

// Config controls the Transport's connection pooling, TLS, proxy and
// timeout behavior.
type Config struct {
	// ProxyURL, if set, routes every request through this HTTP(S) proxy.
	// Credentials in the URL's userinfo become Proxy-Authorization.
	ProxyURL *url.URL

	// TLSConfig is used verbatim for HTTPS connections; if nil a default
	// *tls.Config is used. Set InsecureSkipVerify on it (or the field
	// below) to disable peer verification.
	TLSConfig *tls.Config

	// InsecureSkipVerify disables TLS chain and hostname verification.
	InsecureSkipVerify bool

	// BasicAuthUsername/Password, if either is set, add an Authorization:
	// Basic header to every request before send.
	BasicAuthUsername string
	BasicAuthPassword string

	// AcceptCompression, if true, advertises Accept-Encoding: deflate,
	// gzip and transparently decodes a matching Content-Encoding in
	// the response. Unsupported encodings fail with ErrUnsupportedEncoding.
	AcceptCompression bool

	// RequestTimeout bounds one Perform call end-to-end, including any
	// single retry on a reused dead connection. Zero disables the timer.
	RequestTimeout time.Duration

	// IdleConnTimeout is the reaper period: an idle pooled connection
	// survives at most this long before being closed. Reference
	// behavior is a 30s tick; this is the net/http equivalent knob.
	IdleConnTimeout time.Duration

	// MaxIdleConnsPerHost caps the LIFO idle pool per host.
	MaxIdleConnsPerHost int

	// Recorder receives request and pool lifecycle events. Defaults to
	// metrics.DefaultRecorder (no-op).
	Recorder metrics.Recorder

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// UserAgent, if set, is sent on every request that doesn't already
	// carry its own User-Agent header.
	UserAgent string
}

// DefaultConfig returns a Config with the reference defaults: 30s idle
// connection reaper, compression advertised and decoded, no proxy/auth.
func DefaultConfig() Config {
	return Config{
		AcceptCompression:   true,
		IdleConnTimeout:     30 * time.Second,
		MaxIdleConnsPerHost: 8,
	}
}

// Transport implements nfhttp.Capability as the bottom of the pipeline: it
// has no inner Capability to forward pin operations to.
type Transport struct {
	client   *http.Client
	config   Config
	recorder metrics.Recorder
	logger   *slog.Logger
}

// New builds a Transport from config.
func New(config Config) *Transport {
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 30 * time.Second
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 8
	}

	tlsConfig := config.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	if config.InsecureSkipVerify {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.InsecureSkipVerify = true
	}

	rt := &http.Transport{
		Proxy:               proxyFunc(config.ProxyURL),
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		// The Transport manages Accept-Encoding and decoding itself per
		// the wire contract (spec.md §4.2 step 4), so net/http's own
		// transparent gzip handling is disabled here.
		DisableCompression: true,
	}

	recorder := config.Recorder
	if recorder == nil {
		recorder = metrics.DefaultRecorder
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		client:   &http.Client{Transport: rt},
		config:   config,
		recorder: recorder,
		logger:   logger,
	}
}

func proxyFunc(proxyURL *url.URL) func(*http.Request) (*url.URL, error) {
	if proxyURL == nil {
		return nil
	}
	return http.ProxyURL(proxyURL)
}

// Perform implements nfhttp.Capability.
func (t *Transport) Perform(ctx context.Context, request *nfhttp.Request, callback nfhttp.PerformCallback) *nfhttp.RequestToken {
	token := nfhttp.NewRequestToken()

	reqCtx := ctx
	var cancelTimeout context.CancelFunc
	if t.config.RequestTimeout > 0 {
		reqCtx, cancelTimeout = context.WithTimeout(ctx, t.config.RequestTimeout)
	}
	reqCtx, cancel := context.WithCancel(reqCtx)
	token.OnCancel(cancel)

	go func() {
		defer cancel()
		if cancelTimeout != nil {
			defer cancelTimeout()
		}

		start := time.Now()
		resp, outcome := t.do(reqCtx, request)
		t.recorder.RecordRequest(string(request.Method()), outcome, statusOf(resp), time.Since(start))
		callback(resp)
	}()

	return token
}

func statusOf(resp *nfhttp.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}

// do dispatches one request, applying the single reused-connection retry,
// and returns the Response plus an outcome label for metrics.
func (t *Transport) do(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, string) {
	httpReq, err := t.buildHTTPRequest(ctx, request)
	if err != nil {
		return t.errorResponse(request, err), "error"
	}

	resp, err := t.roundTrip(ctx, httpReq)
	if err != nil && isReusedConnFault(err) {
		t.logger.Debug("retrying once after reused-connection fault", "url", request.URL().String())
		httpReq, buildErr := t.buildHTTPRequest(ctx, request)
		if buildErr == nil {
			resp, err = t.roundTrip(ctx, httpReq)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			outcome := "canceled"
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				outcome = "timeout"
			}
			return t.errorResponse(request, t.classifyError(err, ctx)), outcome
		}
		return t.errorResponse(request, t.classifyError(err, ctx)), "error"
	}
	defer resp.Body.Close()

	nfResp, err := t.buildResponse(request, resp)
	if err != nil {
		return t.errorResponse(request, err), "error"
	}
	return nfResp, "success"
}

func (t *Transport) roundTrip(ctx context.Context, httpReq *http.Request) (*http.Response, error) {
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			event := "dial"
			if info.Reused {
				event = "acquire"
			}
			t.recorder.RecordPoolEvent(event, httpReq.URL.Host)
		},
		PutIdleConn: func(err error) {
			if err == nil {
				t.recorder.RecordPoolEvent("release", httpReq.URL.Host)
			}
		},
	}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(ctx, trace))
	return t.client.Do(httpReq)
}

// isReusedConnFault reports whether err looks like the peer closing a
// keep-alive connection out from under us — an EOF, reset or aborted write
// that the spec says warrants exactly one silent retry on a fresh
// connection.
func isReusedConnFault(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "write" || opErr.Op == "read"
	}
	return false
}

func (t *Transport) buildHTTPRequest(ctx context.Context, request *nfhttp.Request) (*http.Request, error) {
	var body io.Reader
	var contentLength int64
	if request.HasBody() {
		body = bytes.NewReader(request.Body())
		contentLength = int64(len(request.Body()))
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(request.Method()), request.URL().String(), body)
	if err != nil {
		return nil, nfhttp.NewError("Transport.Perform", nfhttp.ErrInvalidRequest, err)
	}
	httpReq.Header = request.Header()
	httpReq.ContentLength = contentLength

	if httpReq.Header.Get("Host") != "" {
		httpReq.Host = httpReq.Header.Get("Host")
	}
	httpReq.Header.Set("Connection", "Keep-Alive")

	if t.config.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.config.UserAgent)
	}

	if t.config.AcceptCompression {
		httpReq.Header.Set("Accept-Encoding", "deflate, gzip")
	}

	if t.config.BasicAuthUsername != "" || t.config.BasicAuthPassword != "" {
		token := base64.StdEncoding.EncodeToString([]byte(t.config.BasicAuthUsername + ":" + t.config.BasicAuthPassword))
		httpReq.Header.Set("Authorization", "Basic "+token)
	}

	// Zero-length POST/PUT bodies still need an explicit Content-Length:
	// 0 rather than triggering chunked framing.
	if !request.HasBody() && (request.Method() == nfhttp.MethodPost || request.Method() == nfhttp.MethodPut) {
		httpReq.ContentLength = 0
		httpReq.Header.Set("Content-Length", "0")
	}

	return httpReq, nil
}

func (t *Transport) buildResponse(request *nfhttp.Request, resp *http.Response) (*nfhttp.Response, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nfhttp.NewError("Transport.Perform", nfhttp.ErrProtocolError, err)
	}

	encoding := resp.Header.Get("Content-Encoding")
	switch {
	case encoding == "" || encoding == "identity":
	case t.config.AcceptCompression && (encoding == "gzip" || encoding == "deflate"):
		decoded, err := decodeBody(encoding, body)
		if err != nil {
			return nil, nfhttp.NewError("Transport.Perform", nfhttp.ErrDecompressionFailed, err)
		}
		body = decoded
		resp.Header.Del("Content-Encoding")
	default:
		return nil, nfhttp.NewError("Transport.Perform", nfhttp.ErrUnsupportedEncoding, fmt.Errorf("unsupported Content-Encoding %q", encoding))
	}

	return nfhttp.NewResponse(request, resp.StatusCode, resp.Header, body), nil
}

func decodeBody(encoding string, body []byte) ([]byte, error) {
	switch encoding {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unsupported Content-Encoding %q", encoding)
	}
}

func (t *Transport) errorResponse(request *nfhttp.Request, err error) *nfhttp.Response {
	resp := nfhttp.NewResponse(request, nfhttp.StatusInvalid, nil, nil)
	resp.SetMetadata("error", err.Error())
	return resp
}

// connectTunnelStatusCode recovers the HTTP status code net/http's own
// Transport saw on a failed CONNECT tunnel through a proxy. On a non-200
// reply it gives up the status line and returns only errors.New(reasonPhrase)
// (see net/http's persistConnWriter dial path), so the only way back to a
// status code is matching that reason phrase against the table net/http
// itself used to build it.
func connectTunnelStatusCode(err error) (int, bool) {
	msg := err.Error()
	for code := 400; code < 600; code++ {
		if text := http.StatusText(code); text != "" && text == msg {
			return code, true
		}
	}
	return 0, false
}

// classifyError maps a transport-level Go error to the nfhttp.ErrorKind the
// spec names for it.
func (t *Transport) classifyError(err error, ctx context.Context) *nfhttp.Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nfhttp.NewError("Transport.Perform", nfhttp.ErrCanceled, err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nfhttp.NewError("Transport.Perform", nfhttp.ErrTimedOut, err)
	}

	if code, ok := connectTunnelStatusCode(err); ok {
		if code == http.StatusProxyAuthRequired {
			return nfhttp.NewError("Transport.Perform", nfhttp.ErrAuthChallengeUnsatisfiable, err)
		}
		return nfhttp.NewError("Transport.Perform", nfhttp.ErrProxyHandshakeFailed, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return nfhttp.NewError("Transport.Perform", nfhttp.ErrDNSFailure, err)
	}
	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) {
		return nfhttp.NewError("Transport.Perform", nfhttp.ErrTLSFailure, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return nfhttp.NewError("Transport.Perform", nfhttp.ErrConnectFailure, err)
		}
	}
	return nfhttp.NewError("Transport.Perform", nfhttp.ErrProtocolError, err)
}

// PerformSync implements nfhttp.Capability.
func (t *Transport) PerformSync(ctx context.Context, request *nfhttp.Request) (*nfhttp.Response, error) {
	done := make(chan *nfhttp.Response, 1)
	token := t.Perform(ctx, request, func(resp *nfhttp.Response) { done <- resp })

	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		token.Cancel()
		return nil, nfhttp.NewError("PerformSync", nfhttp.ErrCanceled, ctx.Err())
	}
}

// Pin is a no-op: the Transport is the innermost layer, with no cache to
// forward a pin request to.
func (t *Transport) Pin(request *nfhttp.Request, label string) error { return nil }

// Unpin is a no-op, for the same reason as Pin.
func (t *Transport) Unpin(request *nfhttp.Request, label string) error { return nil }

// RemovePinned is a no-op, for the same reason as Pin.
func (t *Transport) RemovePinned(label string) error { return nil }

// PinnedFor always returns an empty set: the Transport has no cache.
func (t *Transport) PinnedFor(request *nfhttp.Request) ([]string, error) { return nil, nil }

// PinLabels always returns an empty set: the Transport has no cache.
func (t *Transport) PinLabels() ([]string, error) { return nil, nil }

// Close releases idle pooled connections.
func (t *Transport) Close() {
	if rt, ok := t.client.Transport.(*http.Transport); ok {
		rt.CloseIdleConnections()
	}
}

var _ nfhttp.Capability = (*Transport)(nil)
