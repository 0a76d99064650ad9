package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Layout defaults applied when a screen omits them.
const (
	DefaultLayoutType       = "FORM"
	DefaultSubmitButtonText = "Submit"
)

// ErrEmptyPayload is returned when a screen payload carries no bytes.
var ErrEmptyPayload = errors.New("schema: empty payload")

// Decode parses a JSON screen configuration, applies legacy aliases and
// defaults, folds top-level sub-sections under their parents and sanitises
// display text.
func Decode(data []byte) (*Screen, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	var screen Screen
	if err := json.Unmarshal(data, &screen); err != nil {
		return nil, fmt.Errorf("schema: decode screen: %w", err)
	}
	if err := screen.normalize(); err != nil {
		return nil, err
	}
	return &screen, nil
}

// DecodeYAML parses a YAML screen configuration by converting it to JSON so
// both formats share the same aliases and defaults.
func DecodeYAML(data []byte) (*Screen, error) {
	payload, err := YAMLToJSON(data)
	if err != nil {
		return nil, err
	}
	return Decode(payload)
}

// YAMLToJSON converts a YAML document into its JSON equivalent.
func YAMLToJSON(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyPayload
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode yaml: %w", err)
	}
	payload, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, fmt.Errorf("schema: convert yaml: %w", err)
	}
	return payload, nil
}

func jsonCompatible(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = jsonCompatible(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = jsonCompatible(val)
		}
		return out
	default:
		return v
	}
}

// UnmarshalJSON accepts the wrapped `ui` form alongside the flat legacy form
// and both shapes of the form-level rules block.
func (s *Screen) UnmarshalJSON(data []byte) error {
	type plain Screen
	aux := struct {
		*plain
		Version     Int             `json:"version"`
		Layout      *Layout         `json:"layout"`
		Validations json.RawMessage `json:"validations"`
		UI          *struct {
			Layout   *Layout   `json:"layout"`
			Sections []Section `json:"sections"`
			Actions  []Action  `json:"actions"`
		} `json:"ui"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	s.Version = aux.Version.Or(0)
	layout := aux.Layout
	if ui := aux.UI; ui != nil {
		if ui.Layout != nil {
			layout = ui.Layout
		}
		if ui.Sections != nil {
			s.Sections = ui.Sections
		}
		if ui.Actions != nil {
			s.Actions = ui.Actions
		}
	}
	if layout == nil {
		s.Layout = defaultLayout(DefaultLayoutType)
	} else {
		s.Layout = *layout
	}

	rules, err := decodeRules(aux.Validations)
	if err != nil {
		return err
	}
	s.Validations = rules
	return nil
}

func decodeRules(raw json.RawMessage) ([]FormRule, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var rules []FormRule
		if err := json.Unmarshal(raw, &rules); err != nil {
			return nil, fmt.Errorf("schema: decode validations: %w", err)
		}
		return rules, nil
	}
	var wrapped struct {
		Rules []FormRule `json:"rules"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("schema: decode validations: %w", err)
	}
	return wrapped.Rules, nil
}

func defaultLayout(kind string) Layout {
	return Layout{
		Type:                kind,
		SubmitButtonText:    DefaultSubmitButtonText,
		AllowBackNavigation: true,
	}
}

// UnmarshalJSON accepts either a bare layout type string or a layout object.
func (l *Layout) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		var kind string
		if len(data) > 0 && data[0] == '"' {
			if err := json.Unmarshal(data, &kind); err != nil {
				return err
			}
		}
		if kind == "" {
			kind = DefaultLayoutType
		}
		*l = defaultLayout(kind)
		return nil
	}

	var raw struct {
		Type                string            `json:"type"`
		SubmitButtonText    *string           `json:"submitButtonText"`
		StickyFooter        bool              `json:"stickyFooter"`
		AllowBackNavigation *bool             `json:"allowBackNavigation"`
		EnableSubmitWhen    []SubmitCondition `json:"enableSubmitWhen"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: decode layout: %w", err)
	}
	*l = defaultLayout(raw.Type)
	if l.Type == "" {
		l.Type = DefaultLayoutType
	}
	if raw.SubmitButtonText != nil {
		l.SubmitButtonText = *raw.SubmitButtonText
	}
	if raw.AllowBackNavigation != nil {
		l.AllowBackNavigation = *raw.AllowBackNavigation
	}
	l.StickyFooter = raw.StickyFooter
	l.EnableSubmitWhen = raw.EnableSubmitWhen
	return nil
}

// UnmarshalJSON resolves the sectionId, defaultExpanded and parentSectionId
// aliases and the minInstances default.
func (s *Section) UnmarshalJSON(data []byte) error {
	type plain Section
	aux := struct {
		*plain
		SectionID       string `json:"sectionId"`
		Expanded        *bool  `json:"expanded"`
		DefaultExpanded *bool  `json:"defaultExpanded"`
		MinInstances    Int    `json:"minInstances"`
		Order           Int    `json:"order"`
		ParentSectionID string `json:"parentSectionId"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if s.ID == "" {
		s.ID = aux.SectionID
	}
	switch {
	case aux.DefaultExpanded != nil:
		s.Expanded = *aux.DefaultExpanded
	case aux.Expanded != nil:
		s.Expanded = *aux.Expanded
	default:
		s.Expanded = true
	}
	s.MinInstances = aux.MinInstances.Or(1)
	if s.MinInstances < 0 {
		s.MinInstances = 0
	}
	s.Order = aux.Order.Or(0)
	if s.SubSectionOf == "" {
		s.SubSectionOf = aux.ParentSectionID
	}
	return nil
}

// UnmarshalJSON handles the nested dataSource and verifiedInputConfig shapes
// and drops empty `{}` conditions.
func (f *Field) UnmarshalJSON(data []byte) error {
	type plain Field
	aux := struct {
		*plain
		Order         Int                `json:"order"`
		DataSource    *wireDataSource    `json:"dataSource"`
		VerifiedInput *wireVerifiedInput `json:"verifiedInputConfig"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	f.Order = aux.Order.Or(0)
	f.EnabledWhen = condition(f.EnabledWhen)
	f.VisibleWhen = condition(f.VisibleWhen)
	f.RequiredWhen = condition(f.RequiredWhen)
	if aux.DataSource != nil {
		ds := aux.DataSource.model()
		f.DataSource = &ds
	}
	if aux.VerifiedInput != nil {
		cfg := aux.VerifiedInput.model()
		f.VerifiedInput = &cfg
	}
	if f.SelectionMode == "" {
		f.SelectionMode = SelectionSingle
	} else {
		f.SelectionMode = upper(f.SelectionMode)
	}
	return nil
}

type wireDataSource struct {
	Type       DataSourceType `json:"type"`
	Values     []string       `json:"values"`
	StaticData []struct {
		Value string `json:"value"`
		Label string `json:"label"`
	} `json:"staticData"`
	Key           string `json:"key"`
	MasterDataKey string `json:"masterDataKey"`
	Endpoint      string `json:"endpoint"`
	APIEndpoint   string `json:"apiEndpoint"`
	Method        string `json:"method"`
	DependsOn     string `json:"dependsOn"`
	ParamKey      string `json:"paramKey"`
}

func (w wireDataSource) model() DataSource {
	ds := DataSource{
		Type:      DataSourceType(upper(string(w.Type))),
		Values:    w.Values,
		Key:       w.Key,
		Endpoint:  w.Endpoint,
		Method:    w.Method,
		DependsOn: w.DependsOn,
		ParamKey:  w.ParamKey,
	}
	if ds.Key == "" {
		ds.Key = w.MasterDataKey
	}
	if ds.Endpoint == "" {
		ds.Endpoint = w.APIEndpoint
	}
	if len(ds.Values) == 0 && len(w.StaticData) > 0 {
		ds.Values = make([]string, 0, len(w.StaticData))
		for _, item := range w.StaticData {
			label := item.Label
			if label == "" {
				label = item.Value
			}
			ds.Values = append(ds.Values, label)
		}
	}
	return ds
}

// wireVerifiedInput reads both the nested `verification` block and the flat
// canonical encoding produced by marshalling VerifiedInputConfig.
type wireVerifiedInput struct {
	Input        VerifiedInputInput `json:"input"`
	Verification *wireVerifiedBlock `json:"verification"`
	wireVerifiedBlock
}

type wireVerifiedBlock struct {
	Mode         string            `json:"mode"`
	Messages     Messages          `json:"messages"`
	ShowDialog   bool              `json:"showDialog"`
	OTP          *wireOTP          `json:"otp"`
	API          *wireEndpoint     `json:"api"`
	SuccessMatch *SuccessCondition `json:"successCondition"`
}

type wireOTP struct {
	Channel               string    `json:"channel"`
	Length                Int       `json:"otpLength"`
	ResendIntervalSeconds Int       `json:"resendIntervalSeconds"`
	Consent               *Consent  `json:"consent"`
	SendCode              *Endpoint `json:"sendOtp"`
	VerifyCode            *Endpoint `json:"verifyOtp"`
	API                   *struct {
		SendCode   *Endpoint `json:"sendOtp"`
		VerifyCode *Endpoint `json:"verifyOtp"`
	} `json:"api"`
}

type wireEndpoint struct {
	Endpoint
	SuccessMatch *SuccessCondition `json:"successCondition"`
}

func (w wireVerifiedInput) model() VerifiedInputConfig {
	block := w.wireVerifiedBlock
	if w.Verification != nil {
		block = *w.Verification
	}
	cfg := VerifiedInputConfig{
		Input:        w.Input,
		Mode:         upper(block.Mode),
		Messages:     block.Messages,
		ShowDialog:   block.ShowDialog,
		SuccessMatch: block.SuccessMatch,
	}
	if block.API != nil {
		ep := block.API.Endpoint
		cfg.API = &ep
		if cfg.SuccessMatch == nil {
			cfg.SuccessMatch = block.API.SuccessMatch
		}
	}
	if o := block.OTP; o != nil {
		otp := OTPConfig{
			Channel:               o.Channel,
			Length:                o.Length,
			ResendIntervalSeconds: o.ResendIntervalSeconds,
			Consent:               o.Consent,
			SendCode:              o.SendCode,
			VerifyCode:            o.VerifyCode,
		}
		if o.API != nil {
			if otp.SendCode == nil {
				otp.SendCode = o.API.SendCode
			}
			if otp.VerifyCode == nil {
				otp.VerifyCode = o.API.VerifyCode
			}
		}
		cfg.OTP = &otp
	}
	return cfg
}

// UnmarshalJSON accepts the legacy successCondition map where `equals` may be
// spelled `value`.
func (c *SuccessCondition) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = SuccessCondition{}
	if field, ok := raw["field"].(string); ok {
		c.Field = field
	}
	if v, ok := raw["equals"]; ok {
		c.Equals = v
	} else if v, ok := raw["value"]; ok {
		c.Equals = v
	}
	return nil
}

// UnmarshalJSON flattens the header and otp blocks of a legacy modal.
func (m *Modal) UnmarshalJSON(data []byte) error {
	type plain Modal
	aux := struct {
		*plain
		Header *struct {
			Title string `json:"title"`
			Icon  string `json:"icon"`
		} `json:"header"`
		OTP *struct {
			Length Int `json:"length"`
		} `json:"otp"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Header != nil {
		if m.Title == "" {
			m.Title = aux.Header.Title
		}
		if m.Icon == "" {
			m.Icon = aux.Header.Icon
		}
	}
	if aux.OTP != nil && m.CodeLength == 0 {
		m.CodeLength = aux.OTP.Length.Or(0)
	}
	return nil
}

// UnmarshalJSON accepts the legacy `type` alias for action ids.
func (a *Action) UnmarshalJSON(data []byte) error {
	type plain Action
	aux := struct {
		*plain
		Type string `json:"type"`
	}{plain: (*plain)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = aux.Type
	}
	return nil
}

func (s *Screen) normalize() error {
	sections, err := foldSubSections(s.Sections)
	if err != nil {
		return err
	}
	s.Sections = sections
	sanitizeScreen(s)
	return nil
}
