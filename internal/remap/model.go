package remap

import "strings"

// Model rewrites a model name according to the suffix rules in t. Entries
// are tried in order and only the first matching entry is applied:
//
//	"":"acme"     append "_acme"
//	"acme":""     strip a trailing "_acme"
//	"acme":"corp" replace a trailing "_acme" with "_corp"
//
// Names that match no entry are returned unchanged.
func Model(name string, t Table) string {
	if name == "" {
		return name
	}
	for _, p := range t {
		switch {
		case p.From == "" && p.To != "":
			return name + "_" + p.To
		case p.From != "" && strings.HasSuffix(name, "_"+p.From):
			base := strings.TrimSuffix(name, p.From)
			if p.To == "" {
				return strings.TrimSuffix(base, "_")
			}
			return base + p.To
		}
	}
	return name
}
