package services

import (
	"encoding/json"
	"strconv"

	"gambler/settlement/domain/entities"
)

// Payloads come back from JSONB with numbers as float64

func payloadInt(p entities.RoundPayload, key string) (int, bool) {
	return toInt(p[key])
}

func payloadBool(p entities.RoundPayload, key string) bool {
	b, _ := p[key].(bool)
	return b
}

func payloadInts(p entities.RoundPayload, key string) []int {
	switch v := p[key].(type) {
	case []int:
		return append([]int(nil), v...)
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			if n, ok := toInt(item); ok {
				out = append(out, n)
			}
		}
		return out
	default:
		return nil
	}
}

func payloadSteps(p entities.RoundPayload) map[string]any {
	switch v := p["steps"].(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		return out
	default:
		return map[string]any{}
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
