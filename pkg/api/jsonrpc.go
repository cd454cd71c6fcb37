package api

import "encoding/json"

// rpcRequest is the JSON-RPC request envelope sent as the HTTP POST body.
type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
	ID     int64  `json:"id"`
}

// rpcError is the wire form of a server-reported error. Codes are strings,
// not JSON-RPC 2.0 integers.
type rpcError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) toError() *Error {
	return &Error{Code: ErrorCode(e.Code), Message: e.Message, Data: e.Data}
}

// rpcResponse is the single-response JSON-RPC envelope. Exactly one of Result
// and Error is set.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int64           `json:"id"`
}

// streamLine is the classification of one newline-delimited envelope of a
// streaming response body.
type streamLine struct {
	keepAlive bool
	success   bool
	err       *rpcError
	data      json.RawMessage
}

// parseStreamLine classifies a single non-blank line. The empty object {} is
// a keep-alive, {"success":true} is the terminal marker, an object with an
// error field is an error envelope, and anything else is a data envelope.
func parseStreamLine(line []byte) (streamLine, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return streamLine{}, err
	}
	if len(fields) == 0 {
		return streamLine{keepAlive: true}, nil
	}
	if raw, ok := fields["error"]; ok {
		var rpcErr rpcError
		if err := json.Unmarshal(raw, &rpcErr); err != nil {
			return streamLine{}, err
		}
		return streamLine{err: &rpcErr}, nil
	}
	if raw, ok := fields["success"]; ok {
		var success bool
		if err := json.Unmarshal(raw, &success); err == nil && success {
			return streamLine{success: true}, nil
		}
	}
	// Data envelope. The scanner reuses its buffer, so copy the bytes out.
	return streamLine{data: append(json.RawMessage(nil), line...)}, nil
}
