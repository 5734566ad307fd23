package remap

// Namespace computes the destination namespace name for sourceName.
//
// Resolution order, first match wins:
//  1. sourceName declared with a non-empty value: that value.
//  2. sourceName declared with an empty value: sourceName itself.
//  3. wildcard "" declared with a non-empty value: that value.
//  4. wildcard "" declared with an empty value: sourceName itself.
//
// ok is false when none of the rules apply.
func Namespace(sourceName string, t Table) (name string, ok bool) {
	if to, found := t.Lookup(sourceName); found {
		if to != "" {
			return to, true
		}
		return sourceName, true
	}
	if to, found := t.Lookup(""); found {
		if to != "" {
			return to, true
		}
		return sourceName, true
	}
	return "", false
}

// ResolveNamespace maps sourceName through t and looks the result up in the
// destination catalog (namespace name -> id). A name that maps but is absent
// from the catalog is unresolved.
func ResolveNamespace[ID any](sourceName string, t Table, catalog map[string]ID) (id ID, name string, ok bool) {
	name, ok = Namespace(sourceName, t)
	if !ok {
		return id, "", false
	}
	id, ok = catalog[name]
	if !ok {
		return id, name, false
	}
	return id, name, true
}

// Selects reports whether an object living in namespace should be exported
// for the given table: empty table, wildcard key, or exact key.
func Selects(namespace string, t Table) bool {
	return len(t) == 0 || t.Has("") || t.Has(namespace)
}
