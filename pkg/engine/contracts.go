package engine

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-formflow/pkg/masterdata"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// DefaultPartnerCode is sent when the flow has no partner code.
const DefaultPartnerCode = "DEFAULT"

// FlowContext addresses the backend flow a screen belongs to.
type FlowContext struct {
	ApplicationID string `json:"applicationId,omitempty"`
	FlowID        string `json:"flowId,omitempty"`
	ProductCode   string `json:"productCode,omitempty"`
	PartnerCode   string `json:"partnerCode,omitempty"`
	BranchCode    string `json:"branchCode,omitempty"`
}

// Merge overlays the non-empty values of other. Known context is never
// dropped by a response that omits it.
func (c FlowContext) Merge(other FlowContext) FlowContext {
	if other.ApplicationID != "" {
		c.ApplicationID = other.ApplicationID
	}
	if other.FlowID != "" {
		c.FlowID = other.FlowID
	}
	if other.ProductCode != "" {
		c.ProductCode = other.ProductCode
	}
	if other.PartnerCode != "" {
		c.PartnerCode = other.PartnerCode
	}
	if other.BranchCode != "" {
		c.BranchCode = other.BranchCode
	}
	return c
}

// ScreenContext extracts the routing codes a screen carries.
func ScreenContext(screen *schema.Screen) FlowContext {
	if screen == nil {
		return FlowContext{}
	}
	ctx := FlowContext{FlowID: screen.FlowID}
	if sc := screen.Scope; sc != nil {
		ctx.ProductCode = sc.ProductCode
		ctx.PartnerCode = sc.PartnerCode
		ctx.BranchCode = sc.BranchCode
	}
	return ctx
}

// NextScreenRequest asks the backend for the screen following
// CurrentScreenID. An empty CurrentScreenID requests the first screen.
type NextScreenRequest struct {
	CurrentScreenID string
	Flow            FlowContext
	FormData        map[string]any
}

type wireNextScreenRequest struct {
	ApplicationID   string         `json:"applicationId,omitempty"`
	CurrentScreenID *string        `json:"currentScreenId"`
	FlowID          string         `json:"flowId,omitempty"`
	ProductCode     string         `json:"productCode,omitempty"`
	PartnerCode     string         `json:"partnerCode,omitempty"`
	BranchCode      *string        `json:"branchCode"`
	FormData        map[string]any `json:"formData"`
}

// MarshalJSON writes the runtime wire shape: a null currentScreenId on the
// first call and a null branchCode when unknown.
func (r NextScreenRequest) MarshalJSON() ([]byte, error) {
	w := wireNextScreenRequest{
		ApplicationID: r.Flow.ApplicationID,
		FlowID:        r.Flow.FlowID,
		ProductCode:   r.Flow.ProductCode,
		PartnerCode:   r.Flow.PartnerCode,
		FormData:      r.FormData,
	}
	if r.CurrentScreenID != "" {
		w.CurrentScreenID = &r.CurrentScreenID
	}
	if r.Flow.BranchCode != "" {
		w.BranchCode = &r.Flow.BranchCode
	}
	if w.FormData == nil {
		w.FormData = map[string]any{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the runtime wire shape.
func (r *NextScreenRequest) UnmarshalJSON(data []byte) error {
	var w wireNextScreenRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = NextScreenRequest{
		Flow: FlowContext{
			ApplicationID: w.ApplicationID,
			FlowID:        w.FlowID,
			ProductCode:   w.ProductCode,
			PartnerCode:   w.PartnerCode,
		},
		FormData: w.FormData,
	}
	if w.CurrentScreenID != nil {
		r.CurrentScreenID = *w.CurrentScreenID
	}
	if w.BranchCode != nil {
		r.Flow.BranchCode = *w.BranchCode
	}
	return nil
}

// NextScreenResponse carries the next screen. A nil Screen means the flow is
// complete.
type NextScreenResponse struct {
	NextScreenID string         `json:"nextScreenId"`
	Screen       *schema.Screen `json:"screenConfig,omitempty"`
	Message      string         `json:"message,omitempty"`
}

// Backend resolves screens. Submitting a screen and advancing are the same
// operation.
type Backend interface {
	NextScreen(ctx context.Context, req NextScreenRequest) (NextScreenResponse, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, req NextScreenRequest) (NextScreenResponse, error)

// NextScreen implements Backend.
func (fn BackendFunc) NextScreen(ctx context.Context, req NextScreenRequest) (NextScreenResponse, error) {
	return fn(ctx, req)
}

// MasterData is the master-data collaborator.
type MasterData = masterdata.Source

// CodeRequest addresses the send and verify code endpoints.
type CodeRequest struct {
	Endpoint schema.Endpoint
	FieldID  string
	Key      string
	Target   string
	Channel  string
	Code     string
}

// CallRequest is a configuration driven verification call.
type CallRequest struct {
	Endpoint schema.Endpoint
	FieldID  string
	Key      string
	Value    string
	Body     string
}

// CallResult is the outcome of a verification call. OK reports transport
// success; Body holds the raw response for success-condition matching.
type CallResult struct {
	OK      bool
	Message string
	Body    []byte
}

// Verifier performs the verification calls a schema configures.
type Verifier interface {
	SendCode(ctx context.Context, req CodeRequest) (CallResult, error)
	VerifyCode(ctx context.Context, req CodeRequest) (CallResult, error)
	Call(ctx context.Context, req CallRequest) (CallResult, error)
}

// OptionRequest asks for the options of an API backed data source.
type OptionRequest struct {
	FieldID    string
	Endpoint   string
	Method     string
	ParamKey   string
	ParamValue string
}

// OptionLoader resolves API backed data sources on demand.
type OptionLoader interface {
	LoadOptions(ctx context.Context, req OptionRequest) ([]string, error)
}
