package parser

import "encoding/json"

// serializeIfContainer re-encodes a parsed tool-result value as JSON when
// it is a map or slice (a "container"), per §4.3's You-branch rule: a
// tagged language block is parsed, and containers are serialized back to
// JSON for transport rather than kept as the language's native value.
func serializeIfContainer(v any) (string, bool) {
	switch v.(type) {
	case map[string]any, []any:
		enc, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(enc), true
	default:
		return "", false
	}
}
