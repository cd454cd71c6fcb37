package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxLineBytes bounds a single line of a streaming response body.
const maxLineBytes = 1 << 24

// StreamOptions tunes a RequestStream call.
type StreamOptions struct {
	// Header holds extra headers merged into the HTTP request.
	Header http.Header

	// NoAuth skips authentication for this call.
	NoAuth bool
}

// Stream is a pull iterator over the data envelopes of a streaming JSON-RPC
// response. Each Next call reads at most one line from the wire, so the
// caller's consumption rate backpressures the HTTP read.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	client   *Client
	ctx      context.Context
	envelope rpcRequest
	opts     StreamOptions

	body    io.ReadCloser
	scanner *bufio.Scanner

	forwarded  bool // a data envelope has been returned to the caller
	sawSuccess bool // the success envelope has arrived
	retried    bool // the single auth retry has been spent
	done       bool
	err        error
}

// RequestStream issues a JSON-RPC call whose response body is a sequence of
// newline-delimited JSON envelopes and returns a Stream over its data
// envelopes.
//
// When the first envelope of the response is an auth error the client
// re-authenticates and restarts the request once, transparently. Errors
// arriving after data has been forwarded are final: the caller may already
// have acted on partial output, so a silent restart would duplicate it.
func (c *Client) RequestStream(ctx context.Context, method string, params any, opts *StreamOptions) (*Stream, error) {
	if params == nil {
		params = map[string]any{}
	}
	s := &Stream{
		client:   c,
		ctx:      ctx,
		envelope: rpcRequest{Method: method, Params: params, ID: c.nextID()},
	}
	if opts != nil {
		s.opts = *opts
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// open authenticates and issues the streaming POST. Called for the initial
// attempt and again for the single auth retry.
func (s *Stream) open() error {
	c := s.client

	header := make(http.Header)
	for k, vs := range s.opts.Header {
		header[k] = vs
	}
	if !s.opts.NoAuth {
		token, err := c.authenticate(s.ctx, false)
		if err != nil {
			return err
		}
		if token != "" {
			header.Set("Authorization", bearerHeader(token))
		}
	}

	body, err := json.Marshal(s.envelope)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, c.requestURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	c.logger.Debug("opening stream",
		zap.String("method", s.envelope.Method),
		zap.Int64("id", s.envelope.ID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		resp.Body.Close() //nolint:errcheck
		return fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, msg)
	}

	s.body = resp.Body
	s.scanner = bufio.NewScanner(resp.Body)
	s.scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return nil
}

// Next returns the next data envelope. It returns io.EOF after the server's
// success envelope, and ErrUnexpectedEnd when the response ends without one —
// data already returned is valid either way, but on ErrUnexpectedEnd the
// result set may be truncated.
func (s *Stream) Next() (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}

	for {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, s.fail(fmt.Errorf("read stream: %w", err))
			}
			if !s.sawSuccess {
				return nil, s.fail(ErrUnexpectedEnd)
			}
			s.done = true
			s.closeBody()
			return nil, io.EOF
		}

		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue // keep-alive
		}
		line, err := parseStreamLine(raw)
		if err != nil {
			return nil, s.fail(fmt.Errorf("parse stream line: %w", err))
		}

		switch {
		case line.keepAlive:
			continue

		case line.success:
			// Expected to be the final line; keep reading to hit EOF.
			s.sawSuccess = true
			continue

		case line.err != nil:
			apiErr := line.err.toError()
			if apiErr.Code.IsAuth() && !s.forwarded && !s.retried {
				s.retried = true
				s.closeBody()
				s.client.logger.Info("stream rejected access token, re-authenticating",
					zap.String("method", s.envelope.Method),
					zap.String("code", string(apiErr.Code)),
				)
				s.client.countRetry()
				if _, err := s.client.authenticate(s.ctx, true); err != nil {
					return nil, s.fail(err)
				}
				if err := s.open(); err != nil {
					return nil, s.fail(err)
				}
				// The restarted response starts over; nothing seen on the
				// first attempt counts toward it.
				s.sawSuccess = false
				continue
			}
			return nil, s.fail(apiErr)

		default:
			s.forwarded = true
			return line.data, nil
		}
	}
}

// Collect drains the stream and returns all remaining data envelopes.
func (s *Stream) Collect() ([]json.RawMessage, error) {
	var out []json.RawMessage
	for {
		doc, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, doc)
	}
}

// Close releases the underlying response body. It is safe to call Close at
// any point, including after Next returned an error.
func (s *Stream) Close() error {
	if s.err == nil && !s.done {
		s.err = fmt.Errorf("stream closed")
	}
	s.closeBody()
	return nil
}

func (s *Stream) fail(err error) error {
	s.err = err
	s.closeBody()
	return err
}

func (s *Stream) closeBody() {
	if s.body != nil {
		s.body.Close() //nolint:errcheck
		s.body = nil
	}
}
