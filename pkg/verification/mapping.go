package verification

import (
	"encoding/json"
	"strings"
)

// RenderMapping fills a request body template for a verification call.
// The placeholders {{<fieldID>Value}}, {{<fieldID>}} and {{value}} all
// expand to the field value, escaped for use inside a JSON string. An empty
// template yields a minimal JSON body keyed by the field id.
func RenderMapping(template, fieldID, value string) string {
	if strings.TrimSpace(template) == "" {
		raw, _ := json.Marshal(map[string]string{fieldID: value})
		return string(raw)
	}
	escaped := jsonEscape(value)
	r := strings.NewReplacer(
		"{{"+fieldID+"Value}}", escaped,
		"{{"+fieldID+"}}", escaped,
		"{{value}}", escaped,
	)
	return r.Replace(template)
}

func jsonEscape(s string) string {
	raw, err := json.Marshal(s)
	if err != nil || len(raw) < 2 {
		return s
	}
	return string(raw[1 : len(raw)-1])
}
