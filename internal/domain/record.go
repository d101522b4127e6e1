package domain

import (
	"github.com/tidwall/gjson"
)

// Record is one raw item returned by a source endpoint. Records are kept as
// the original JSON text so member order survives into the rendered report.
type Record []byte

// Result parses the record for read access.
func (r Record) Result() gjson.Result {
	return gjson.ParseBytes(r)
}

// IsObject reports whether the record is a JSON object.
func (r Record) IsObject() bool {
	return r.Result().IsObject()
}

// Keys returns the object member names in document order. Non-object
// records have no keys.
func (r Record) Keys() []string {
	res := r.Result()
	if !res.IsObject() {
		return nil
	}
	seen := make(map[string]struct{})
	var keys []string
	res.ForEach(func(k, _ gjson.Result) bool {
		name := k.String()
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			keys = append(keys, name)
		}
		return true
	})
	return keys
}

// Field looks up a member by its literal name. Names are matched verbatim,
// so dots and wildcards carry no path meaning.
func (r Record) Field(name string) (gjson.Result, bool) {
	var (
		out   gjson.Result
		found bool
	)
	res := r.Result()
	if !res.IsObject() {
		return out, false
	}
	res.ForEach(func(k, v gjson.Result) bool {
		if k.String() == name {
			out, found = v, true
			return false
		}
		return true
	})
	return out, found
}

// MarshalJSON emits the record verbatim.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}
