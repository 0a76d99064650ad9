// Package fixture serves form flows described by YAML or JSON files. It
// stands in for the runtime backend: the same flow can be driven in-process
// through Backend or over HTTP through Handler.
package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/goliatone/go-formflow/pkg/schema"
)

const (
	// FlowFile is the manifest every fixture directory carries.
	FlowFile = "flow.yaml"
	// ScreensDir holds one screen document per file.
	ScreensDir = "screens"
	// DefaultOTP is accepted when a flow does not set one.
	DefaultOTP = "123456"
)

// ErrNoFlow is returned when a filesystem carries no flow manifest.
var ErrNoFlow = errors.New("fixture: flow manifest not found")

// Flow is a loaded fixture: the routing codes, the screens and the canned
// responses of every collaborator.
type Flow struct {
	ID              string                  `json:"flowId"`
	ProductCode     string                  `json:"productCode,omitempty"`
	PartnerCode     string                  `json:"partnerCode,omitempty"`
	BranchCode      string                  `json:"branchCode,omitempty"`
	Start           string                  `json:"start,omitempty"`
	Sequence        []string                `json:"sequence,omitempty"`
	CompleteMessage string                  `json:"completeMessage,omitempty"`
	OTP             string                  `json:"otp,omitempty"`
	MasterData      map[string][]string     `json:"masterData,omitempty"`
	Options         map[string]OptionSet    `json:"options,omitempty"`
	Verifications   map[string]Verification `json:"verifications,omitempty"`
	Transitions     map[string][]Transition `json:"transitions,omitempty"`

	screens map[string]*Screen
}

// Screen pairs the decoded screen with the JSON it is served as.
type Screen struct {
	Source schema.Source
	Raw    json.RawMessage
	Screen *schema.Screen
}

// Transition routes a submitted screen. The first transition whose When
// holds picks the next screen; an empty Next completes the flow.
type Transition struct {
	When *schema.Condition `json:"when,omitempty"`
	Next string            `json:"next"`
}

// OptionSet answers an API data source. Values is keyed by the dependent
// parameter value; All answers requests without one.
type OptionSet struct {
	Param  string              `json:"param,omitempty"`
	Values map[string][]string `json:"values,omitempty"`
	All    []string            `json:"all,omitempty"`
}

// Verification answers POST /api/verify/<name>. Accept lists the values
// that pass; an empty list accepts any non-blank value.
type Verification struct {
	Field         string         `json:"field,omitempty"`
	Accept        []string       `json:"accept,omitempty"`
	Success       map[string]any `json:"success,omitempty"`
	Failure       map[string]any `json:"failure,omitempty"`
	FailureStatus int            `json:"failureStatus,omitempty"`
}

// LoadFS reads the flow manifest at the root of fsys and every screen under
// ScreensDir. Screen files are JSON or YAML; the file name does not matter,
// each screen is keyed by its screenId.
func LoadFS(fsys fs.FS) (*Flow, error) {
	if fsys == nil {
		return nil, errors.New("fixture: fs is nil")
	}
	data, err := fs.ReadFile(fsys, FlowFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoFlow
		}
		return nil, fmt.Errorf("fixture: read %s: %w", FlowFile, err)
	}
	payload, err := schema.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("fixture: %s: %w", FlowFile, err)
	}
	var flow Flow
	if err := json.Unmarshal(payload, &flow); err != nil {
		return nil, fmt.Errorf("fixture: parse %s: %w", FlowFile, err)
	}
	if strings.TrimSpace(flow.ID) == "" {
		return nil, fmt.Errorf("fixture: %s: flowId is required", FlowFile)
	}

	flow.screens = make(map[string]*Screen)
	err = fs.WalkDir(fsys, ScreensDir, func(name string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isScreenFile(name) {
			return nil
		}
		return flow.addScreen(fsys, name)
	})
	if err != nil {
		return nil, err
	}
	if len(flow.screens) == 0 {
		return nil, fmt.Errorf("fixture: flow %s has no screens", flow.ID)
	}
	if err := flow.finish(); err != nil {
		return nil, err
	}
	return &flow, nil
}

func (f *Flow) addScreen(fsys fs.FS, name string) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("fixture: read %s: %w", name, err)
	}
	doc, err := schema.NewDocument(schema.SourceFromFS(name), data)
	if err != nil {
		return fmt.Errorf("fixture: %s: %w", name, err)
	}
	payload, err := doc.JSON()
	if err != nil {
		return fmt.Errorf("fixture: %s: %w", name, err)
	}
	payload, err = f.stamp(payload)
	if err != nil {
		return fmt.Errorf("fixture: %s: %w", name, err)
	}
	screen, err := schema.Decode(payload)
	if err != nil {
		return fmt.Errorf("fixture: %s: %w", name, err)
	}
	if screen.ScreenID == "" {
		return fmt.Errorf("fixture: %s: screenId is required", name)
	}
	if prev, exists := f.screens[screen.ScreenID]; exists {
		return fmt.Errorf("fixture: duplicate screen %q (files %s and %s)", screen.ScreenID, prev.Source.Location(), name)
	}
	f.screens[screen.ScreenID] = &Screen{Source: doc.Source(), Raw: payload, Screen: screen}
	return nil
}

// stamp fills the flow id and routing scope a screen omits so every served
// screen carries the flow context.
func (f *Flow) stamp(payload []byte) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	if _, ok := doc["flowId"]; !ok {
		doc["flowId"] = f.ID
	}
	if _, ok := doc["scope"]; !ok {
		scope := lo.OmitByValues(map[string]string{
			"productCode": f.ProductCode,
			"partnerCode": f.PartnerCode,
			"branchCode":  f.BranchCode,
		}, []string{""})
		if len(scope) > 0 {
			doc["scope"] = scope
		}
	}
	return json.Marshal(doc)
}

func (f *Flow) finish() error {
	ids := lo.Keys(f.screens)
	sort.Strings(ids)
	if len(f.Sequence) == 0 {
		f.Sequence = ids
		if f.Start != "" {
			f.Sequence = append([]string{f.Start}, lo.Without(ids, f.Start)...)
		}
	}
	if f.Start == "" {
		f.Start = f.Sequence[0]
	}
	for _, id := range append([]string{f.Start}, f.Sequence...) {
		if _, ok := f.screens[id]; !ok {
			return fmt.Errorf("fixture: flow %s references unknown screen %q", f.ID, id)
		}
	}
	for from, list := range f.Transitions {
		if _, ok := f.screens[from]; !ok {
			return fmt.Errorf("fixture: transitions from unknown screen %q", from)
		}
		for _, t := range list {
			if t.Next == "" {
				continue
			}
			if _, ok := f.screens[t.Next]; !ok {
				return fmt.Errorf("fixture: transition %s -> %s targets an unknown screen", from, t.Next)
			}
		}
	}
	if f.OTP == "" {
		f.OTP = DefaultOTP
	}
	return nil
}

// Screen returns the screen with the given id.
func (f *Flow) Screen(id string) (*Screen, bool) {
	s, ok := f.screens[id]
	return s, ok
}

// ScreenIDs returns the screen ids in sequence order.
func (f *Flow) ScreenIDs() []string {
	return append([]string(nil), f.Sequence...)
}

func isScreenFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
