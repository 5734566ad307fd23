package looker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque platform identifier. Older API versions return integers,
// newer ones strings (and LookML dashboards use "model::name"); the original
// JSON form is kept so payloads round-trip unchanged.
type ID struct {
	value  string
	quoted bool
}

// StringID returns an ID encoded as a JSON string.
func StringID(s string) ID {
	return ID{value: s, quoted: true}
}

// NumericID returns an ID encoded as a JSON number.
func NumericID(n int64) ID {
	return ID{value: strconv.FormatInt(n, 10)}
}

func (id ID) String() string { return id.value }

// IsZero reports whether the ID is absent.
func (id ID) IsZero() bool { return id.value == "" }

// Equal compares two IDs by value, ignoring their JSON encoding.
func (id ID) Equal(other ID) bool { return id.value == other.value }

func (id ID) MarshalJSON() ([]byte, error) {
	if id.value == "" {
		return []byte("null"), nil
	}
	if id.quoted {
		return json.Marshal(id.value)
	}
	return []byte(id.value), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ID{}
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID{value: s, quoted: true}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid id %s: %w", data, err)
		}
		*id = ID{value: n.String()}
	}
	return nil
}
