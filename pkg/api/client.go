package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// maxResponseBytes bounds the body of a single (non-streaming) JSON-RPC
// response. Large result sets should use the streaming surface instead.
const maxResponseBytes = 1 << 24

// Client is a JSON-RPC API client with token-based authentication.
//
// A Client owns its authentication state: it logs in lazily on first use,
// caches the access token, collapses concurrent authentication attempts into
// a single login call, and re-authenticates when the server reports the token
// as expired. All methods are safe for concurrent use.
type Client struct {
	server           string
	authServer       string
	routeVersion     int
	authRouteVersion int

	httpClient *http.Client
	logger     *zap.Logger
	metrics    *clientMetrics

	creds credentials

	// session state — guarded by mu
	mu            sync.Mutex
	accessToken   string
	tokenExpired  bool
	tokenRejected bool      // a supplied token was rejected; never replay it
	tokenExpiry   time.Time // zero = no proactive refresh
	pending       *pendingAuth

	requestID atomic.Int64
}

// pendingAuth is the shared handle for one in-flight authentication round.
// Concurrent callers wait on done and then read token/err, so a burst of
// requests discovering an expired token triggers exactly one login.
type pendingAuth struct {
	done  chan struct{}
	token string
	err   error
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client. The default has no timeout, so
// that long-running exports are not cut off mid-stream; set one here when
// every call on this client is a single response.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPassword supplies email/password credentials. The client performs a
// login RPC on first use and caches the resulting access token.
func WithPassword(email, password string) Option {
	return func(c *Client) {
		c.creds.email = email
		c.creds.password = password
	}
}

// WithUserNamespace scopes password logins to a user namespace.
func WithUserNamespace(id string) Option {
	return func(c *Client) { c.creds.userNamespaceID = id }
}

// WithAccessToken supplies a pre-obtained access token. The token is used
// as-is; when the server rejects it the client falls back to a password
// login if WithPassword was also given, and fails with ErrTokenExpired
// otherwise.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.creds.accessToken = token }
}

// WithNoAuth sends all requests unauthenticated.
func WithNoAuth() Option {
	return func(c *Client) { c.creds.explicitNoAuth = true }
}

// WithAuthServer directs login calls at a different base URL than normal
// requests. Defaults to the request server.
func WithAuthServer(server string) Option {
	return func(c *Client) { c.authServer = strings.TrimRight(server, "/") }
}

// WithRouteVersion sets the version segment of the request URL path
// ({server}/v{n}/jsonrpc). Defaults to 1.
func WithRouteVersion(n int) Option {
	return func(c *Client) { c.routeVersion = n }
}

// WithAuthRouteVersion sets the version segment of the auth URL path.
// Defaults to the request route version.
func WithAuthRouteVersion(n int) Option {
	return func(c *Client) { c.authRouteVersion = n }
}

// WithLogger attaches a zap logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics registers request, retry, and login counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = newClientMetrics(reg) }
}

// New creates a Client for the API at server (e.g. "https://api.example.com").
//
// Exactly one credential variant is selected from the supplied options: a
// provided access token, email/password, or — only when WithNoAuth is set —
// no authentication at all. New fails when no variant applies.
func New(server string, opts ...Option) (*Client, error) {
	if server == "" {
		return nil, ErrNoServer
	}
	c := &Client{
		server:       strings.TrimRight(server, "/"),
		routeVersion: 1,
		httpClient:   &http.Client{},
		logger:       zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.creds.resolve(); err != nil {
		return nil, err
	}
	if c.authServer == "" {
		c.authServer = c.server
	}
	if c.authRouteVersion == 0 {
		c.authRouteVersion = c.routeVersion
	}
	if c.creds.kind == credentialToken {
		c.accessToken = c.creds.accessToken
	}
	return c, nil
}

func (c *Client) requestURL() string {
	return fmt.Sprintf("%s/v%d/jsonrpc", c.server, c.routeVersion)
}

func (c *Client) authURL() string {
	return fmt.Sprintf("%s/v%d/jsonrpc", c.authServer, c.authRouteVersion)
}

// nextID returns the next JSON-RPC request id. Ids are unique and monotonic
// across concurrent calls on one client.
func (c *Client) nextID() int64 {
	return c.requestID.Add(1)
}

// bearerHeader builds the Authorization value. The server expects the token
// base64-encoded inside the bearer scheme, not the raw token.
func bearerHeader(token string) string {
	return "Bearer " + base64.StdEncoding.EncodeToString([]byte(token))
}

// Authenticate ensures a valid access token and returns it, performing a
// login RPC when needed. The empty string means the client is unauthenticated
// (WithNoAuth). Request and RequestStream call this automatically; it is
// exported for callers who want the token itself, e.g. to persist it.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	return c.authenticate(ctx, false)
}

// authenticate is the single entry point for all authentication state
// transitions. forceExpired models "the token we were using just got rejected
// by the server": it discards the cached token and any in-flight round before
// deriving a fresh one.
func (c *Client) authenticate(ctx context.Context, forceExpired bool) (string, error) {
	c.mu.Lock()
	if forceExpired {
		c.accessToken = ""
		c.tokenExpired = true
		if c.creds.kind == credentialToken {
			c.tokenRejected = true
		}
		c.pending = nil
	}

	// Join an in-flight round rather than starting a duplicate login.
	if p := c.pending; p != nil {
		c.mu.Unlock()
		select {
		case <-p.done:
			return p.token, p.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if c.accessToken != "" && !c.tokenExpired &&
		(c.tokenExpiry.IsZero() || time.Now().Before(c.tokenExpiry)) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}

	switch {
	case c.creds.kind == credentialNone:
		c.mu.Unlock()
		return "", nil
	case c.creds.kind == credentialToken && !c.tokenRejected:
		c.accessToken = c.creds.accessToken
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	case c.creds.kind == credentialToken && !c.creds.hasPassword():
		c.mu.Unlock()
		return "", ErrTokenExpired
	}

	// Password login (the active variant, or the fallback for a rejected
	// provided token).
	p := &pendingAuth{done: make(chan struct{})}
	c.pending = p
	c.mu.Unlock()

	token, expiry, err := c.login(ctx)

	c.mu.Lock()
	// A forceExpired call may have discarded this round already; only the
	// still-current round updates session state.
	if c.pending == p {
		c.pending = nil
		if err == nil {
			c.accessToken = token
			c.tokenExpired = false
			c.tokenExpiry = expiry
		}
	}
	c.mu.Unlock()

	p.token, p.err = token, err
	close(p.done)
	return token, err
}

// login performs the login RPC against the auth endpoint and returns the
// issued access token with its local expiry hint.
func (c *Client) login(ctx context.Context) (string, time.Time, error) {
	params := map[string]any{
		"email":    c.creds.email,
		"password": c.creds.password,
	}
	if c.creds.userNamespaceID != "" {
		params["userNamespaceId"] = c.creds.userNamespaceID
	}

	envelope := rpcRequest{Method: "login", Params: params, ID: c.nextID()}
	resp, err := c.post(ctx, c.authURL(), envelope, nil)
	if err != nil {
		c.countLogin("error")
		return "", time.Time{}, fmt.Errorf("login: %w", err)
	}
	if resp.Error != nil {
		c.countLogin("error")
		return "", time.Time{}, fmt.Errorf("login: %w", resp.Error.toError())
	}

	var result struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		c.countLogin("error")
		return "", time.Time{}, fmt.Errorf("decode login result: %w", err)
	}
	if result.AccessToken == "" {
		c.countLogin("error")
		return "", time.Time{}, fmt.Errorf("login result missing accessToken")
	}

	expiry := tokenExpiry(result.AccessToken)
	c.logger.Debug("login succeeded", zap.Time("token_expiry", expiry))
	c.countLogin("ok")
	return result.AccessToken, expiry, nil
}

// RequestOptions tunes a single Request call.
type RequestOptions struct {
	// MaxRetries is the total number of attempts. The default of 1 means one
	// attempt and no retry; only auth errors (token_expired/bad_access_token)
	// consume additional attempts.
	MaxRetries int

	// Header holds extra headers merged into the HTTP request.
	Header http.Header

	// NoAuth skips authentication for this call even when the client has
	// credentials.
	NoAuth bool

	// ID overrides the auto-assigned JSON-RPC request id when non-zero.
	ID int64
}

// Request issues a single JSON-RPC call and returns the result field of the
// response envelope.
//
// Transport failures and non-auth application errors surface immediately.
// When the server reports token_expired or bad_access_token the client
// re-authenticates and retries, bounded by opts.MaxRetries.
func (c *Client) Request(ctx context.Context, method string, params any, opts *RequestOptions) (json.RawMessage, error) {
	var o RequestOptions
	if opts != nil {
		o = *opts
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 1
	}

	if params == nil {
		params = map[string]any{}
	}
	id := o.ID
	if id == 0 {
		id = c.nextID()
	}
	envelope := rpcRequest{Method: method, Params: params, ID: id}

	for attempt := 1; ; attempt++ {
		header := make(http.Header)
		for k, vs := range o.Header {
			header[k] = vs
		}
		if !o.NoAuth {
			token, err := c.authenticate(ctx, false)
			if err != nil {
				return nil, err
			}
			if token != "" {
				header.Set("Authorization", bearerHeader(token))
			}
		}

		resp, err := c.post(ctx, c.requestURL(), envelope, header)
		if err != nil {
			c.countRequest(method, "transport_error")
			return nil, err
		}
		if resp.Error == nil {
			c.countRequest(method, "ok")
			return resp.Result, nil
		}

		apiErr := resp.Error.toError()
		if !apiErr.Code.IsAuth() {
			c.countRequest(method, "error")
			return nil, apiErr
		}
		c.countRequest(method, "auth_error")
		if attempt >= o.MaxRetries {
			return nil, apiErr
		}

		c.logger.Info("access token rejected, re-authenticating",
			zap.String("method", method),
			zap.String("code", string(apiErr.Code)),
			zap.Int("attempt", attempt),
		)
		c.countRetry()
		if _, err := c.authenticate(ctx, true); err != nil {
			return nil, err
		}
	}
}

// post sends one JSON-RPC envelope and decodes the single-response body.
// Errors returned here are transport-level and are never retried.
func (c *Client) post(ctx context.Context, url string, envelope rpcRequest, header http.Header) (*rpcResponse, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	c.logger.Debug("issuing request",
		zap.String("method", envelope.Method),
		zap.Int64("id", envelope.ID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, respBody)
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}
