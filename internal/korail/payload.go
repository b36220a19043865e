package korail

import (
	"fmt"
	"strconv"
	"strings"
)

// payload is a decoded backend response. Fields are accessed as strings
// because the backend mixes strings and bare numbers freely across
// endpoints, and even across rows of the same listing.
type payload map[string]any

func (p payload) str(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// strAny returns the first non-empty value among keys.
func (p payload) strAny(keys ...string) string {
	for _, key := range keys {
		if v := p.str(key); v != "" {
			return v
		}
	}
	return ""
}

func (p payload) section(key string) payload {
	if m, ok := p[key].(map[string]any); ok {
		return payload(m)
	}
	return nil
}

// items reads a field that holds either a single object or an array of
// objects, a quirk of the backend's XML-derived JSON.
func (p payload) items(key string) []payload {
	switch v := p[key].(type) {
	case map[string]any:
		return []payload{payload(v)}
	case []any:
		out := make([]payload, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, payload(m))
			}
		}
		return out
	}
	return nil
}

// mergeInherit copies the listed parent fields into a copy of item where
// item's own value is empty. Listing endpoints push shared fields up to
// the journey level and expect clients to flatten them back down.
func mergeInherit(item, parent payload, keys []string) payload {
	merged := make(payload, len(item)+len(keys))
	for k, v := range item {
		merged[k] = v
	}
	for _, key := range keys {
		if strings.TrimSpace(merged.str(key)) != "" {
			continue
		}
		if v, ok := parent[key]; ok {
			merged[key] = v
		}
	}
	return merged
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
