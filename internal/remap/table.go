// Package remap holds the ordered remap tables used to move content between
// tenants: the space (namespace) remap and the model-name suffix remap.
//
// Both tables are evaluated in declaration order, so they are kept as ordered
// pair lists rather than Go maps.
package remap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pair is a single From -> To entry of a remap table.
type Pair struct {
	From string
	To   string
}

// Table is an ordered list of remap entries. The empty key "" is the
// wildcard entry.
type Table []Pair

// Lookup returns the value of the first entry whose key equals key.
func (t Table) Lookup(key string) (string, bool) {
	for _, p := range t {
		if p.From == key {
			return p.To, true
		}
	}
	return "", false
}

// Has reports whether key is declared in the table.
func (t Table) Has(key string) bool {
	_, ok := t.Lookup(key)
	return ok
}

// Keys returns the declared keys in order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for _, p := range t {
		keys = append(keys, p.From)
	}
	return keys
}

// Values returns the declared values in order.
func (t Table) Values() []string {
	values := make([]string, 0, len(t))
	for _, p := range t {
		values = append(values, p.To)
	}
	return values
}

func (t Table) String() string {
	parts := make([]string, 0, len(t))
	for _, p := range t {
		parts = append(parts, fmt.Sprintf("%q:%q", p.From, p.To))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// UnmarshalYAML decodes a YAML (or JSON) mapping keeping key order.
func (t *Table) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*t = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: remap table must be a mapping", node.Line)
	}

	table := make(Table, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		var from, to string
		if err := key.Decode(&from); err != nil {
			return fmt.Errorf("line %d: remap key: %w", key.Line, err)
		}
		if value.Tag != "!!null" {
			if err := value.Decode(&to); err != nil {
				return fmt.Errorf("line %d: remap value for %q: %w", value.Line, from, err)
			}
		}
		table = append(table, Pair{From: from, To: to})
	}
	*t = table
	return nil
}

// MarshalYAML encodes the table as a mapping in declaration order.
func (t Table) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range t {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.From},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.To},
		)
	}
	return node, nil
}

// MarshalJSON encodes the table as a JSON object in declaration order.
func (t Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.From)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.To)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (t *Table) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("remap table must be a JSON object")
	}

	var table Table
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("remap key must be a string")
		}
		var value *string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("remap value for %q: %w", key, err)
		}
		p := Pair{From: key}
		if value != nil {
			p.To = *value
		}
		table = append(table, p)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*t = table
	return nil
}
