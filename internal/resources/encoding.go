package resources

import "encoding/json"

// Encode serializes v to the store's wire format: a JSON document that is
// then JSON-string-quoted once more. This mirrors the watch stream's
// observed double-encoding (see DESIGN.md's Open Question #1) and is
// applied uniformly by every writer so Decode always has a matching
// unwrap step regardless of whether the bytes came from a direct Get or a
// watch event's value/prev_value.
func Encode(v any) ([]byte, error) {
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}

// Decode reverses Encode: it first unwraps the outer JSON-string quoting
// layer, then unmarshals the inner document into v.
func Decode(data []byte, v any) error {
	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		return err
	}
	return json.Unmarshal([]byte(inner), v)
}
