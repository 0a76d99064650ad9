package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/goliatone/go-formflow/pkg/condition"
	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/masterdata"
	"github.com/goliatone/go-formflow/pkg/schema"
)

var (
	ErrUnknownFlow         = errors.New("fixture: unknown flow")
	ErrUnknownScreen       = errors.New("fixture: unknown screen")
	ErrUnknownVerification = errors.New("fixture: unknown verification")
)

// Backend answers every engine collaborator from a Flow. It records the
// form data each application submitted.
type Backend struct {
	flow  *Flow
	conds *condition.Evaluator

	mu          sync.Mutex
	submissions map[string]map[string]any
	sent        []string
}

var (
	_ engine.Backend      = (*Backend)(nil)
	_ engine.Verifier     = (*Backend)(nil)
	_ engine.OptionLoader = (*Backend)(nil)
	_ masterdata.Source   = (*Backend)(nil)
)

// NewBackend serves flow.
func NewBackend(flow *Flow) *Backend {
	return &Backend{
		flow:        flow,
		conds:       condition.New(nil),
		submissions: make(map[string]map[string]any),
	}
}

// Flow returns the served flow.
func (b *Backend) Flow() *Flow {
	return b.flow
}

// NextScreen returns the first screen for an empty CurrentScreenID, else the
// screen the transitions of the current one pick.
func (b *Backend) NextScreen(ctx context.Context, req engine.NextScreenRequest) (engine.NextScreenResponse, error) {
	if err := ctx.Err(); err != nil {
		return engine.NextScreenResponse{}, err
	}
	id, err := b.route(req)
	if err != nil {
		return engine.NextScreenResponse{}, err
	}
	if id == "" {
		return engine.NextScreenResponse{Message: b.flow.CompleteMessage}, nil
	}
	s, _ := b.flow.Screen(id)
	return engine.NextScreenResponse{NextScreenID: id, Screen: s.Screen}, nil
}

// route records the submitted form data and picks the next screen id. An
// empty id completes the flow.
func (b *Backend) route(req engine.NextScreenRequest) (string, error) {
	if req.Flow.FlowID != "" && req.Flow.FlowID != b.flow.ID {
		return "", fmt.Errorf("%w: %s", ErrUnknownFlow, req.Flow.FlowID)
	}
	if req.CurrentScreenID == "" {
		return b.flow.Start, nil
	}
	if _, ok := b.flow.Screen(req.CurrentScreenID); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownScreen, req.CurrentScreenID)
	}

	b.mu.Lock()
	data := b.submissions[req.Flow.ApplicationID]
	if data == nil {
		data = make(map[string]any)
		b.submissions[req.Flow.ApplicationID] = data
	}
	for k, v := range req.FormData {
		data[k] = v
	}
	b.mu.Unlock()

	values := formValues(req.FormData)
	if list, ok := b.flow.Transitions[req.CurrentScreenID]; ok {
		for _, t := range list {
			if b.conds.Eval(t.When, values, schema.NoInstance) {
				return t.Next, nil
			}
		}
		return "", nil
	}

	pos := slices.Index(b.flow.Sequence, req.CurrentScreenID)
	if pos < 0 || pos+1 >= len(b.flow.Sequence) {
		return "", nil
	}
	return b.flow.Sequence[pos+1], nil
}

// Submissions returns the merged form data an application sent so far.
func (b *Backend) Submissions(applicationID string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]any, len(b.submissions[applicationID]))
	for k, v := range b.submissions[applicationID] {
		out[k] = v
	}
	return out
}

// Lookup implements masterdata.Source. Unknown keys yield an empty list.
func (b *Backend) Lookup(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string{}, b.flow.MasterData[key]...), nil
}

// SendCode pretends to deliver the flow's fixed code.
func (b *Backend) SendCode(ctx context.Context, req engine.CodeRequest) (engine.CallResult, error) {
	status, body := b.sendCode(req.FieldID, req.Target)
	return result(status, body), ctx.Err()
}

// VerifyCode accepts the flow's fixed code only.
func (b *Backend) VerifyCode(ctx context.Context, req engine.CodeRequest) (engine.CallResult, error) {
	status, body := b.verifyCode(req.Code)
	return result(status, body), ctx.Err()
}

// Call answers a configuration driven verification from the flow's
// verifications, keyed by the last segment of the endpoint path.
func (b *Backend) Call(ctx context.Context, req engine.CallRequest) (engine.CallResult, error) {
	if err := ctx.Err(); err != nil {
		return engine.CallResult{}, err
	}
	name := verificationName(req.Endpoint.URL)
	payload := map[string]any{}
	if strings.TrimSpace(req.Body) != "" {
		if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
			return engine.CallResult{}, fmt.Errorf("fixture: verification %s: decode body: %w", name, err)
		}
	}
	if _, ok := payload[req.FieldID]; !ok && req.FieldID != "" {
		payload[req.FieldID] = req.Value
	}
	status, body, err := b.verify(name, req.FieldID, payload)
	if err != nil {
		return engine.CallResult{}, err
	}
	return result(status, body), nil
}

// LoadOptions answers API data sources from the flow's option sets, keyed
// by endpoint path.
func (b *Backend) LoadOptions(ctx context.Context, req engine.OptionRequest) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.options(endpointPath(req.Endpoint), req.ParamValue)
}

// SentCodes lists the targets codes were sent to, oldest first.
func (b *Backend) SentCodes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.sent...)
}

func (b *Backend) sendCode(fieldID, target string) (int, map[string]any) {
	if strings.TrimSpace(target) == "" {
		return http.StatusBadRequest, map[string]any{"message": "Nothing to send the code to"}
	}
	b.mu.Lock()
	b.sent = append(b.sent, fieldID+":"+target)
	b.mu.Unlock()
	return http.StatusOK, map[string]any{"status": "SENT"}
}

func (b *Backend) verifyCode(code string) (int, map[string]any) {
	if strings.TrimSpace(code) != b.flow.OTP {
		return http.StatusUnauthorized, map[string]any{"verified": false, "message": "Invalid OTP"}
	}
	return http.StatusOK, map[string]any{"verified": true}
}

func (b *Backend) verify(name, fieldID string, payload map[string]any) (int, map[string]any, error) {
	v, ok := b.flow.Verifications[name]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s", ErrUnknownVerification, name)
	}
	field := v.Field
	if field == "" {
		field = fieldID
	}
	if field == "" {
		// Over HTTP only the body names the value: take its first key
		// other than the code.
		keys := lo.Without(lo.Keys(payload), "otp")
		slices.Sort(keys)
		if len(keys) > 0 {
			field = keys[0]
		}
	}
	value := strings.TrimSpace(formstate.FromAny(payload[field]).Text())
	accepted := value != "" && (len(v.Accept) == 0 || lo.ContainsBy(v.Accept, func(a string) bool {
		return strings.EqualFold(a, value)
	}))
	if accepted {
		body := v.Success
		if body == nil {
			body = map[string]any{"status": "VERIFIED"}
		}
		return http.StatusOK, body, nil
	}
	body := v.Failure
	if body == nil {
		body = map[string]any{"message": "Verification failed"}
	}
	status := v.FailureStatus
	if status == 0 {
		status = http.StatusUnprocessableEntity
	}
	return status, body, nil
}

func (b *Backend) options(endpoint, param string) ([]string, error) {
	set, ok := b.flow.Options[endpoint]
	if !ok {
		return nil, fmt.Errorf("fixture: no options for %s", endpoint)
	}
	if param == "" {
		return append([]string{}, set.All...), nil
	}
	return append([]string{}, set.Values[param]...), nil
}

func result(status int, body map[string]any) engine.CallResult {
	raw, _ := json.Marshal(body)
	msg, _ := body["message"].(string)
	return engine.CallResult{OK: status >= 200 && status < 300, Message: msg, Body: raw}
}

func verificationName(endpoint string) string {
	return path.Base(endpointPath(endpoint))
}

// endpointPath strips scheme, host and query so relative and absolute
// schema endpoints address the same fixture entry.
func endpointPath(endpoint string) string {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return endpoint
	}
	return "/" + strings.TrimPrefix(u.Path, "/")
}

// formValues adapts submitted form data to condition.Values.
type formValues map[string]any

func (v formValues) Get(key string) formstate.Value {
	return formstate.FromAny(v[key])
}
