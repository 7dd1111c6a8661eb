// Package rpcproxy forwards browser JSON-RPC calls to a fixed upstream node.
package rpcproxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// JSON-RPC error codes returned by the proxy itself.
const (
	CodeUpstream    = -32000
	CodeRateLimited = -32005
	CodeInternal    = -32603

	maxBodyBytes   = 1 << 20
	defaultTimeout = 30 * time.Second
)

// Options configures a Proxy. A zero RateLimit disables limiting.
type Options struct {
	Upstream  string
	RateLimit float64
	RateBurst int
	Timeout   time.Duration
	Client    *http.Client
}

// Proxy is an http.Handler for /api/rpc-proxy.
type Proxy struct {
	upstream string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func New(opts Options, logger *zap.Logger) (*Proxy, error) {
	if opts.Upstream == "" {
		return nil, fmt.Errorf("upstream rpc url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	p := &Proxy{upstream: opts.Upstream, client: client, logger: logger}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit) + 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return p, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"message": "RPC Proxy is active"})
	case http.MethodPost:
		p.forward(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorBody(rpcError{Code: CodeInternal, Message: "method not allowed"}))
	}
}

func (p *Proxy) forward(w http.ResponseWriter, r *http.Request) {
	if p.limiter != nil && !p.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorBody(rpcError{Code: CodeRateLimited, Message: "rate limit exceeded"}))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		p.internal(w, fmt.Errorf("read request: %w", err))
		return
	}
	if !json.Valid(body) {
		p.internal(w, fmt.Errorf("request body is not valid JSON"))
		return
	}

	p.logger.Debug("forwarding rpc request", zap.String("upstream", p.upstream))
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, p.upstream, bytes.NewReader(body))
	if err != nil {
		p.internal(w, fmt.Errorf("build upstream request: %w", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.internal(w, fmt.Errorf("upstream request: %w", err))
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		p.internal(w, fmt.Errorf("read upstream response: %w", err))
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Error("upstream rpc error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		writeJSON(w, resp.StatusCode, errorBody(rpcError{
			Code:    CodeUpstream,
			Message: fmt.Sprintf("RPC request failed with status %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			Data:    string(respBody),
		}))
		return
	}
	if !json.Valid(respBody) {
		p.internal(w, fmt.Errorf("upstream returned invalid JSON"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(respBody)
}

func (p *Proxy) internal(w http.ResponseWriter, err error) {
	p.logger.Error("rpc proxy internal error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody(rpcError{Code: CodeInternal, Message: err.Error()}))
}

func errorBody(e rpcError) map[string]rpcError {
	return map[string]rpcError{"error": e}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
