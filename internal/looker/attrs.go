package looker

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// Attrs carries the server fields a record does not declare, so copying a
// record into a create payload keeps every attribute the source had.
type Attrs map[string]json.RawMessage

// Get returns the raw value stored under key.
func (a Attrs) Get(key string) (json.RawMessage, bool) {
	v, ok := a[key]
	return v, ok
}

// Set stores v under key.
func (a *Attrs) Set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if *a == nil {
		*a = make(Attrs)
	}
	(*a)[key] = raw
	return nil
}

// Delete removes keys.
func (a Attrs) Delete(keys ...string) {
	for _, k := range keys {
		delete(a, k)
	}
}

// Clone returns a copy that can be modified independently.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Pick returns the subset of a holding keys that are present.
func (a Attrs) Pick(keys ...string) Attrs {
	out := make(Attrs)
	for _, k := range keys {
		if v, ok := a[k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

var knownKeysCache sync.Map // reflect.Type -> map[string]bool

// knownKeys returns the JSON names declared by the struct type of v.
func knownKeys(v interface{}) map[string]bool {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := knownKeysCache.Load(t); ok {
		return cached.(map[string]bool)
	}

	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" || !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		keys[name] = true
	}
	knownKeysCache.Store(t, keys)
	return keys
}

// decodeRecord fills the declared fields of known (a pointer to an alias
// struct) and returns everything else as Attrs.
func decodeRecord(data []byte, known interface{}) (Attrs, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	declared := knownKeys(known)
	var attrs Attrs
	for k, v := range all {
		if declared[k] {
			continue
		}
		if attrs == nil {
			attrs = make(Attrs)
		}
		attrs[k] = v
	}
	return attrs, nil
}

// encodeRecord merges the declared fields of known with attrs. Declared
// fields win over attrs of the same name.
func encodeRecord(known interface{}, attrs Attrs) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	declared := knownKeys(known)
	for k, v := range attrs {
		if declared[k] {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}
