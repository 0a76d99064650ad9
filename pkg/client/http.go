package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/engine"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Op      string
	Status  string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("client: %s: unexpected status %s: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("client: %s: unexpected status %s", e.Op, e.Status)
}

type response struct {
	status string
	code   int
	body   []byte
}

func (r response) ok() bool {
	return r.code >= 200 && r.code < 300
}

// message pulls a human readable message out of a JSON body.
func (r response) message() string {
	var body map[string]any
	if err := json.Unmarshal(r.body, &body); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "errorMessage"} {
		if msg, ok := body[key].(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return ""
}

func (r response) err(op string) error {
	return &StatusError{Op: op, Status: r.status, Code: r.code, Message: r.message()}
}

func (r response) result() engine.CallResult {
	return engine.CallResult{OK: r.ok(), Message: r.message(), Body: r.body}
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload []byte) (response, error) {
	target, err := c.resolve(endpoint)
	if err != nil {
		return response{}, err
	}
	if len(query) > 0 {
		u, err := url.Parse(target)
		if err != nil {
			return response{}, err
		}
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, body)
	if err != nil {
		return response{}, err
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logf("client: %s %s: %v", method, target, err)
		return response{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("client: read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 && resp.StatusCode == http.StatusNoContent {
		data = nil
	}
	return response{status: resp.Status, code: resp.StatusCode, body: data}, nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Code == code
}
