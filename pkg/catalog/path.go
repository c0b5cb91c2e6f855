package catalog

import (
	"strconv"
	"strings"
)

// Lookup walks a decoded JSON document along a dotted path.
//
// A component ending in "[]" names a list; the rest of the path is applied
// to every element and the results are returned as a list. A numeric
// component indexes into a list. A missing key, an index out of range or a
// type mismatch anywhere on the way yields (nil, false).
func Lookup(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return doc, true
	}
	return walk(doc, strings.Split(path, "."))
}

func walk(node interface{}, components []string) (interface{}, bool) {
	if len(components) == 0 {
		return node, true
	}
	head, rest := components[0], components[1:]

	if key, ok := strings.CutSuffix(head, "[]"); ok {
		child, found := step(node, key)
		if !found {
			return nil, false
		}
		list, isList := child.([]interface{})
		if !isList {
			return nil, false
		}
		values := make([]interface{}, 0, len(list))
		for _, elem := range list {
			value, found := walk(elem, rest)
			if !found {
				return nil, false
			}
			values = append(values, value)
		}
		return values, true
	}

	child, found := step(node, head)
	if !found {
		return nil, false
	}
	return walk(child, rest)
}

func step(node interface{}, key string) (interface{}, bool) {
	switch typed := node.(type) {
	case map[string]interface{}:
		value, ok := typed[key]
		return value, ok
	case []interface{}:
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 || index >= len(typed) {
			return nil, false
		}
		return typed[index], true
	default:
		return nil, false
	}
}

// LookupString returns the trimmed string at path
func LookupString(doc interface{}, path string) (string, bool) {
	value, ok := Lookup(doc, path)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// LookupStrings returns the strings at path. A single string is returned
// as a one-element list; non-string list members are skipped.
func LookupStrings(doc interface{}, path string) ([]string, bool) {
	value, ok := Lookup(doc, path)
	if !ok {
		return nil, false
	}
	switch typed := value.(type) {
	case string:
		return []string{strings.TrimSpace(typed)}, true
	case []interface{}:
		out := make([]string, 0, len(typed))
		for _, elem := range typed {
			if s, isString := elem.(string); isString {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out, true
	default:
		return nil, false
	}
}
