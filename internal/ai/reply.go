package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// fencedObject matches a JSON object wrapped in a Markdown code fence.
var fencedObject = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*(\\{.*\\})\\s*\x60\x60\x60")

// ExtractJSONObject returns the outermost JSON object in a model reply,
// unwrapping Markdown fences and surrounding prose. It returns "" when the
// reply holds no object at all.
func ExtractJSONObject(reply string) string {
	reply = strings.TrimSpace(reply)
	if m := fencedObject.FindStringSubmatch(reply); len(m) > 1 {
		return m[1]
	}
	first := strings.Index(reply, "{")
	last := strings.LastIndex(reply, "}")
	if first == -1 {
		return ""
	}
	if last < first {
		// Truncated reply; let the repair pass try to close it.
		return reply[first:]
	}
	return reply[first : last+1]
}

// DecodeJSONObject extracts the JSON object from reply and decodes it into v.
// A reply that does not decode as-is is run through jsonrepair once.
// repaired reports whether the repair pass was needed.
func DecodeJSONObject(reply string, v any) (repaired bool, err error) {
	text := ExtractJSONObject(reply)
	if text == "" {
		return false, fmt.Errorf("no JSON object in model reply")
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return false, nil
	}
	fixed, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return true, fmt.Errorf("repairing model JSON: %w", rerr)
	}
	if err := json.Unmarshal([]byte(fixed), v); err != nil {
		return true, fmt.Errorf("decoding repaired model JSON: %w", err)
	}
	return true, nil
}
