package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lherron/lkmig/internal/looker"
)

// Kind identifies the object type stored in a document.
type Kind string

const (
	KindLook      Kind = "look"
	KindDashboard Kind = "dashboard"
)

const (
	lookSuffix = "look.json"
	dashSuffix = "dash.json"
	indent     = "   "
)

// Catalog is a set of exported objects.
type Catalog struct {
	Looks      []looker.Look
	Dashboards []looker.Dashboard
	// Files lists the documents the catalog was loaded from, in load order.
	Files []string
	// Rejected lists documents of a directory load that could not be read
	// or failed validation. They are left out of Looks and Dashboards.
	Rejected []Rejected
}

// Rejected is a document Load skipped.
type Rejected struct {
	Path string
	Kind Kind
	Err  error
}

// Renamed is an object Save wrote under a disambiguated name because an
// earlier object of the same save already took its natural name.
type Renamed struct {
	Kind  Kind
	Space string
	Title string
	Path  string
}

// Saved describes the documents written by Save.
type Saved struct {
	Files   []string
	Renamed []Renamed
}

// FileName returns the document name for an object: <space>__<title>_<suffix>
// with blanks and path separators replaced by underscores.
func FileName(kind Kind, space, title string) string {
	suffix := lookSuffix
	if kind == KindDashboard {
		suffix = dashSuffix
	}
	return sanitize(space) + "__" + sanitize(title) + "_" + suffix
}

var nameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_")

func sanitize(s string) string {
	return nameReplacer.Replace(s)
}

// KindOf reports the kind of a document from its file name.
func KindOf(path string) (Kind, bool) {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, lookSuffix):
		return KindLook, true
	case strings.HasSuffix(base, dashSuffix):
		return KindDashboard, true
	default:
		return "", false
	}
}

// Save writes one document per look and dashboard into dir. Documents left
// by an earlier export are overwritten, but two objects of the same save
// never share a file: later ones get their id, or a counter, added to the
// name.
func Save(dir string, looks []looker.Look, dashboards []looker.Dashboard) (*Saved, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	out := &Saved{}
	used := make(map[string]bool)
	write := func(kind Kind, space, title string, id looker.ID, v interface{}) error {
		name := FileName(kind, space, title)
		if used[name] {
			name = uniqueName(kind, space, title, id, used)
			out.Renamed = append(out.Renamed, Renamed{Kind: kind, Space: space, Title: title, Path: filepath.Join(dir, name)})
		}
		used[name] = true
		p := filepath.Join(dir, name)
		if err := writeDocument(p, v); err != nil {
			return err
		}
		out.Files = append(out.Files, p)
		return nil
	}

	for i := range looks {
		l := &looks[i]
		if err := write(KindLook, l.SpaceName(), l.Title, l.ID, l); err != nil {
			return out, err
		}
	}
	for i := range dashboards {
		d := &dashboards[i]
		if err := write(KindDashboard, d.SpaceName(), d.Title, d.ID, d); err != nil {
			return out, err
		}
	}
	return out, nil
}

func uniqueName(kind Kind, space, title string, id looker.ID, used map[string]bool) string {
	if !id.IsZero() {
		if name := FileName(kind, space, title+"_"+id.String()); !used[name] {
			return name
		}
	}
	for n := 2; ; n++ {
		if name := FileName(kind, space, fmt.Sprintf("%s_%d", title, n)); !used[name] {
			return name
		}
	}
}

func writeDocument(path string, v interface{}) error {
	data, err := PrettyJSON(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// PrettyJSON encodes v with sorted keys and a three-space indent. Numbers keep
// their original text.
func PrettyJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Load reads every look and dashboard document in dir, in file name order.
// Files with other names are ignored. A document that cannot be read or is
// invalid is recorded in Rejected and the rest still load.
func Load(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := KindOf(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	cat := &Catalog{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := cat.add(path); err != nil {
			kind, _ := KindOf(name)
			cat.Rejected = append(cat.Rejected, Rejected{Path: path, Kind: kind, Err: err})
		}
	}
	return cat, nil
}

// LoadFile reads a single look or dashboard document.
func LoadFile(path string) (*Catalog, error) {
	if _, ok := KindOf(path); !ok {
		return nil, fmt.Errorf("%s: file name must end in %s or %s", path, lookSuffix, dashSuffix)
	}
	cat := &Catalog{}
	if err := cat.add(path); err != nil {
		return nil, err
	}
	return cat, nil
}

func (c *Catalog) add(path string) error {
	kind, _ := KindOf(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := Validate(kind, data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	switch kind {
	case KindLook:
		var l looker.Look
		if err := json.Unmarshal(data, &l); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		c.Looks = append(c.Looks, l)
	case KindDashboard:
		var d looker.Dashboard
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		c.Dashboards = append(c.Dashboards, d)
	}
	c.Files = append(c.Files, path)
	return nil
}
