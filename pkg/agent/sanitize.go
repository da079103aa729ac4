package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// sanitizeJSON walks a value and replaces everything encoding/json
// cannot represent: NaN and infinities become strings, invalid UTF-8 is
// coerced, and unknown types are stringified. Tool results pass through
// here before they are serialized into the transcript.
func sanitizeJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, bool, string, int, int32, int64, json.Number:
		if s, ok := val.(string); ok && !utf8.ValidString(s) {
			return strings.ToValidUTF8(s, "�")
		}
		return val
	case float32:
		return sanitizeFloat(float64(val))
	case float64:
		return sanitizeFloat(val)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = sanitizeJSON(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sanitizeJSON(item)
		}
		return out
	default:
		// Types json handles natively (structs, typed slices) marshal
		// fine; everything else is stringified.
		if _, err := json.Marshal(val); err == nil {
			return val
		}
		return fmt.Sprintf("%v", val)
	}
}

func sanitizeFloat(f float64) interface{} {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}
