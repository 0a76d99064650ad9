package verification

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Matches evaluates a success condition against a decoded response body.
// Field is a dotted path; numeric segments index into arrays. A nil
// condition defers to the transport outcome, so it always matches.
func Matches(cond *schema.SuccessCondition, body map[string]any) bool {
	if cond == nil || strings.TrimSpace(cond.Field) == "" {
		return true
	}
	got, ok := lookup(body, cond.Field)
	if !ok {
		return false
	}
	return sameValue(got, cond.Equals)
}

// MatchesJSON is Matches over a raw response payload. Payloads that are not
// JSON objects only match a nil condition.
func MatchesJSON(cond *schema.SuccessCondition, raw []byte) bool {
	if cond == nil || strings.TrimSpace(cond.Field) == "" {
		return true
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return false
	}
	return Matches(cond, body)
}

func lookup(body map[string]any, path string) (any, bool) {
	var current any = body
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func sameValue(got, want any) bool {
	if got == nil || want == nil {
		return got == want
	}
	switch w := want.(type) {
	case bool:
		switch g := got.(type) {
		case bool:
			return g == w
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(g))
			return err == nil && b == w
		}
		return false
	case float64, int, int64:
		wf, _ := toFloat(w)
		gf, ok := toFloat(got)
		return ok && gf == wf
	}
	return strings.EqualFold(stringify(got), stringify(want))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
