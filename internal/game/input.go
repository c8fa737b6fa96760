package game

import "strings"

// InputFrame is the last-write-wins intent a client repeats while keys are
// held. The server never queues frames, it samples the latest.
type InputFrame struct {
	Left  bool `json:"left"`
	Right bool `json:"right"`
	Jump  bool `json:"jump"`
}

// ParseInputFrame accepts the three envelope shapes clients historically
// send: {input:{...}}, {keys:{...}}, or the flags flat on the payload.
// All three parse to the identical frame.
func ParseInputFrame(data map[string]interface{}) InputFrame {
	if nested, ok := data["input"].(map[string]interface{}); ok {
		return flagsFrom(nested)
	}
	if nested, ok := data["keys"].(map[string]interface{}); ok {
		return flagsFrom(nested)
	}
	return flagsFrom(data)
}

func flagsFrom(m map[string]interface{}) InputFrame {
	return InputFrame{
		Left:  boolField(m, "left"),
		Right: boolField(m, "right"),
		Jump:  boolField(m, "jump"),
	}
}

func boolField(m map[string]interface{}, key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}

// CanvasHeight extracts a reported viewport height from an input payload.
// Clients have shipped three different field names for it.
func CanvasHeight(data map[string]interface{}) (float64, bool) {
	for _, key := range []string{"canvasHeight", "viewportHeight", "height"} {
		if v, ok := data[key].(float64); ok && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// MaxNameLength caps sanitized display names.
const MaxNameLength = 20

// SanitizeName trims and truncates a display name. The cap counts runes, not
// bytes, so multibyte names are never cut mid-character. Idempotent; an empty
// result means the update should be ignored.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	return name
}
