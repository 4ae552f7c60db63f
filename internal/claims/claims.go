// Package claims holds the decoded JWT payload type and the helpers used to read it.
package claims

import "strings"

// Claims is a decoded JWT payload.
type Claims map[string]any

// Has reports whether the claim is present, even when its value is null.
func (c Claims) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// String returns the claim as a string. The bool is false when the claim is missing or not a string.
func (c Claims) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// GetNested walks a dotted path through maps and lists.
// A list in the middle of the path maps the rest of the path over each element and the
// results are flattened. Any step that cannot be traversed yields nil.
func GetNested(data any, path string) any {
	return getNested(data, strings.Split(path, "."))
}

func getNested(data any, keys []string) any {
	if len(keys) == 0 {
		return data
	}

	switch v := data.(type) {
	case Claims:
		return getNested(map[string]any(v), keys)
	case map[string]any:
		next, ok := v[keys[0]]
		if !ok {
			return nil
		}

		return getNested(next, keys[1:])
	case []any:
		out := make([]any, 0, len(v))

		for _, item := range v {
			out = append(out, getNested(item, keys))
		}

		return Flatten(out)
	default:
		return nil
	}
}

// Flatten recursively flattens nested lists and drops nil members.
// A non-list value is returned as a single element list.
func Flatten(v any) []any {
	if v == nil {
		return nil
	}

	list, ok := v.([]any)
	if !ok {
		return []any{v}
	}

	out := make([]any, 0, len(list))

	for _, item := range list {
		if _, nested := item.([]any); nested {
			out = append(out, Flatten(item)...)
			continue
		}

		if item != nil {
			out = append(out, item)
		}
	}

	return out
}

// StringList converts v into a slice of strings.
// It succeeds only when v is a list whose members are all non-empty strings.
func StringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		for _, s := range list {
			if s == "" {
				return nil, false
			}
		}

		return list, true
	case []any:
		out := make([]string, 0, len(list))

		for _, item := range list {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, false
			}

			out = append(out, s)
		}

		return out, true
	default:
		return nil, false
	}
}

// StringOrList accepts a single string or a list of strings, as used by aud and amr.
func StringOrList(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))

		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}
