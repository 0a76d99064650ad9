package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/masterdata"
	"github.com/goliatone/go-formflow/pkg/schema"
)

const (
	// NextScreenPath is the runtime navigation endpoint.
	NextScreenPath = "api/v1/runtime/next-screen"
	// MasterDataPath returns every master-data list keyed by master key.
	MasterDataPath = "api/v1/master-data"

	// DefaultTimeout bounds a single request when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	headerRequestID = "X-Request-ID"
)

// Logger mirrors engine.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Client talks to the form runtime over HTTP. It implements every
// collaborator the engine needs: Backend, MasterData, Verifier and
// OptionLoader.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	headers http.Header
	logger  Logger

	masterMu sync.Mutex
	master   map[string][]string
}

var (
	_ engine.Backend      = (*Client)(nil)
	_ engine.Verifier     = (*Client)(nil)
	_ engine.OptionLoader = (*Client)(nil)
	_ masterdata.Source   = (*Client)(nil)
)

// Option configures the client.
type Option func(*Client)

// WithHTTPClient uses client for every request. The client is copied so the
// caller's value is never mutated.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			return
		}
		clone := *client
		c.http = &clone
	}
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New builds a client rooted at baseURL. Relative endpoints found in screen
// schemas resolve against it.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("client: base URL is required")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: base URL %q must be absolute", baseURL)
	}

	c := &Client{
		base:    base,
		timeout: DefaultTimeout,
		headers: make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c, nil
}

// BaseURL returns the root every relative endpoint resolves against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// NextScreen posts the current form data and decodes the next screen.
func (c *Client) NextScreen(ctx context.Context, req engine.NextScreenRequest) (engine.NextScreenResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return engine.NextScreenResponse{}, fmt.Errorf("client: encode next-screen request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, NextScreenPath, nil, payload)
	if err != nil {
		return engine.NextScreenResponse{}, fmt.Errorf("client: next screen: %w", err)
	}
	if !resp.ok() {
		return engine.NextScreenResponse{}, resp.err("next screen")
	}

	return decodeNextScreen(resp.body)
}

// decodeNextScreen runs the screen config through schema.Decode so aliases,
// sub-section folding and sanitising apply. A null or absent screenConfig
// marks the end of the flow.
func decodeNextScreen(data []byte) (engine.NextScreenResponse, error) {
	var wire struct {
		NextScreenID string          `json:"nextScreenId"`
		ScreenConfig json.RawMessage `json:"screenConfig"`
		Message      string          `json:"message"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return engine.NextScreenResponse{}, fmt.Errorf("client: decode next screen: %w", err)
	}
	out := engine.NextScreenResponse{NextScreenID: wire.NextScreenID, Message: wire.Message}
	raw := bytes.TrimSpace(wire.ScreenConfig)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	screen, err := schema.Decode(raw)
	if err != nil {
		return engine.NextScreenResponse{}, fmt.Errorf("client: decode screen %s: %w", wire.NextScreenID, err)
	}
	out.Screen = screen
	return out, nil
}

// Lookup returns the option list for a master key. The runtime only exposes
// the full master-data map, so it is fetched once and kept; a key the
// backend does not know yields an empty list.
func (c *Client) Lookup(ctx context.Context, key string) ([]string, error) {
	c.masterMu.Lock()
	defer c.masterMu.Unlock()

	if c.master == nil {
		resp, err := c.do(ctx, http.MethodGet, MasterDataPath, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("client: master data: %w", err)
		}
		if !resp.ok() {
			return nil, resp.err("master data")
		}
		all := map[string][]string{}
		if err := json.Unmarshal(resp.body, &all); err != nil {
			return nil, fmt.Errorf("client: decode master data: %w", err)
		}
		c.master = all
	}

	values, ok := c.master[key]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), values...), nil
}

// RefreshMasterData drops the cached master-data map.
func (c *Client) RefreshMasterData() {
	c.masterMu.Lock()
	c.master = nil
	c.masterMu.Unlock()
}

// SendCode asks the configured endpoint to deliver a one-time code.
func (c *Client) SendCode(ctx context.Context, req engine.CodeRequest) (engine.CallResult, error) {
	if !req.Endpoint.Configured() {
		return engine.CallResult{}, errors.New("client: send code endpoint is not configured")
	}
	body := map[string]any{
		"fieldId": req.FieldID,
		"value":   req.Target,
	}
	if req.Channel != "" {
		body["channel"] = req.Channel
	}
	query := url.Values{"fieldId": {req.FieldID}, "value": {req.Target}}
	return c.call(ctx, req.Endpoint, query, body)
}

// VerifyCode submits the code the user entered.
func (c *Client) VerifyCode(ctx context.Context, req engine.CodeRequest) (engine.CallResult, error) {
	if !req.Endpoint.Configured() {
		return engine.CallResult{}, errors.New("client: verify code endpoint is not configured")
	}
	body := map[string]any{
		"fieldId": req.FieldID,
		"value":   req.Target,
		"otp":     req.Code,
	}
	query := url.Values{"fieldId": {req.FieldID}, "value": {req.Target}, "otp": {req.Code}}
	return c.call(ctx, req.Endpoint, query, body)
}

// Call performs a configuration driven verification call. POST sends the
// rendered request body; GET sends the value as a query parameter named
// after the field.
func (c *Client) Call(ctx context.Context, req engine.CallRequest) (engine.CallResult, error) {
	if !req.Endpoint.Configured() {
		return engine.CallResult{}, errors.New("client: verification endpoint is not configured")
	}
	method := methodOf(req.Endpoint.Method)
	var (
		query   url.Values
		payload []byte
	)
	if method == http.MethodGet {
		query = url.Values{req.FieldID: {req.Value}}
	} else {
		payload = []byte(req.Body)
		if strings.TrimSpace(req.Body) == "" {
			payload = []byte("{}")
		}
	}
	resp, err := c.do(ctx, method, req.Endpoint.URL, query, payload)
	if err != nil {
		return engine.CallResult{Message: transportMessage(err)}, err
	}
	return resp.result(), nil
}

// LoadOptions fetches the options of an API backed data source. Both a bare
// JSON array and an object wrapping it under options, data or values are
// accepted.
func (c *Client) LoadOptions(ctx context.Context, req engine.OptionRequest) ([]string, error) {
	if strings.TrimSpace(req.Endpoint) == "" {
		return nil, errors.New("client: option endpoint is not configured")
	}
	var query url.Values
	if req.ParamKey != "" && req.ParamValue != "" {
		query = url.Values{req.ParamKey: {req.ParamValue}}
	}
	method := http.MethodGet
	if strings.TrimSpace(req.Method) != "" {
		method = methodOf(req.Method)
	}
	var payload []byte
	if method != http.MethodGet {
		body := map[string]string{}
		if req.ParamKey != "" {
			body[req.ParamKey] = req.ParamValue
		}
		payload, _ = json.Marshal(body)
		query = nil
	}

	resp, err := c.do(ctx, method, req.Endpoint, query, payload)
	if err != nil {
		return nil, fmt.Errorf("client: options for %s: %w", req.FieldID, err)
	}
	if !resp.ok() {
		return nil, resp.err("options for " + req.FieldID)
	}
	return decodeOptions(resp.body)
}

func (c *Client) call(ctx context.Context, ep schema.Endpoint, query url.Values, body map[string]any) (engine.CallResult, error) {
	method := methodOf(ep.Method)
	var payload []byte
	if method == http.MethodGet {
		body = nil
	} else {
		query = nil
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return engine.CallResult{}, fmt.Errorf("client: encode body: %w", err)
		}
	}
	resp, err := c.do(ctx, method, ep.URL, query, payload)
	if err != nil {
		return engine.CallResult{Message: transportMessage(err)}, err
	}
	return resp.result(), nil
}

// Fetch reads the raw body behind endpoint. Non-2xx responses surface as a
// *StatusError.
func (c *Client) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.err("fetch")
	}
	return resp.body, nil
}

func (c *Client) resolve(endpoint string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("client: parse endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return c.base.ResolveReference(ref).String(), nil
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func methodOf(method string) string {
	switch m := strings.ToUpper(strings.TrimSpace(method)); m {
	case "":
		return http.MethodPost
	default:
		return m
	}
}

func decodeOptions(data []byte) ([]string, error) {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		return stringsOf(list), nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("client: decode options: %w", err)
	}
	for _, key := range []string{"options", "data", "values"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("client: decode options.%s: %w", key, err)
		}
		return stringsOf(list), nil
	}
	return []string{}, nil
}

func stringsOf(list []any) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch typed := item.(type) {
		case string:
			out = append(out, typed)
		case map[string]any:
			if label, ok := typed["label"].(string); ok {
				out = append(out, label)
			} else if value, ok := typed["value"].(string); ok {
				out = append(out, value)
			}
		case nil:
		default:
			out = append(out, fmt.Sprint(typed))
		}
	}
	return out
}

func transportMessage(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return err.Error()
}
