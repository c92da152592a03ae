package shadow

import (
	"github.com/tidwall/gjson"
)

// State is a component's top-level mapping. Merges are shallow: nested
// values are shared, never copied.
type State = map[string]any

// ParseState decodes a `state` attribute value. Valid JSON yields the
// decoded value (objects become State); anything else is returned as the
// raw string.
func ParseState(raw string) any {
	if !gjson.Valid(raw) {
		return raw
	}
	return gjson.Parse(raw).Value()
}

// mergeState applies next onto cur. When both are mappings the top-level
// keys of next overwrite those of cur in place and cur is returned, so
// references to the live mapping stay valid. Otherwise next replaces cur.
func mergeState(cur, next any) any {
	curMap, ok := cur.(State)
	if !ok || curMap == nil {
		return next
	}
	nextMap, ok := next.(State)
	if !ok {
		return next
	}
	for k, v := range nextMap {
		curMap[k] = v
	}
	return curMap
}
