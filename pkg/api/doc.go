// Package api is the Zipscene API client core: an authenticating JSON-RPC
// client with retried requests and streaming export support.
//
// # Creating a client
//
// Credentials are supplied as options. Email/password credentials log in
// lazily on first use:
//
//	c, err := api.New("https://api.example.com",
//	    api.WithPassword("a@b.com", "secret"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A pre-obtained access token skips login entirely. Supply password
// credentials alongside it to re-login automatically when the server
// rejects the token:
//
//	c, _ := api.New(server, api.WithAccessToken(token))
//	c, _ := api.New(server, api.WithAccessToken(token), api.WithPassword(email, pw))
//
// Unauthenticated access must be explicit:
//
//	c, _ := api.New(server, api.WithNoAuth())
//
// # Making requests
//
// Request sends one JSON-RPC call to {server}/v{routeVersion}/jsonrpc and
// returns the raw result:
//
//	result, err := c.Request(ctx, "ping", map[string]any{}, nil)
//
// Authentication is automatic: the client obtains and caches an access
// token, sends it as "Authorization: Bearer <base64(token)>", and when the
// server answers token_expired or bad_access_token it re-authenticates and
// retries, up to RequestOptions.MaxRetries total attempts (default 1 — a
// single attempt, no retry). Any other server error and all transport
// failures surface immediately.
//
// Concurrent requests that discover a missing or expired token share a
// single login round-trip; they never stampede the auth endpoint.
//
// # Streaming
//
// RequestStream is for methods whose response body is newline-delimited
// JSON. It returns a pull iterator; each Next reads at most one line, so
// slow consumers backpressure the HTTP read:
//
//	stream, err := c.RequestStream(ctx, "export", params, nil)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    doc, err := stream.Next()
//	    if err == io.EOF {
//	        break // server sent {"success":true}
//	    }
//	    if err != nil {
//	        return err // includes ErrUnexpectedEnd on a truncated stream
//	    }
//	    // ... use doc ...
//	}
//
// An auth error on the first envelope restarts the stream once after
// re-authenticating; once data has been delivered, errors are final.
//
// # Observability
//
// WithLogger attaches a zap logger for debug-level request tracing;
// WithMetrics registers request/login/retry counters with a Prometheus
// registerer.
package api
