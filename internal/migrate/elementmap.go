package migrate

import "github.com/lherron/lkmig/internal/looker"

// ElementMap pairs element ids created on the target with the source element
// each one was copied from. It is scoped to one dashboard import.
type ElementMap struct {
	newToOld map[string]looker.ID
	oldToNew map[string]looker.ID
}

func newElementMap() *ElementMap {
	return &ElementMap{
		newToOld: make(map[string]looker.ID),
		oldToNew: make(map[string]looker.ID),
	}
}

// Add records that newID was created from oldID.
func (m *ElementMap) Add(newID, oldID looker.ID) {
	m.newToOld[newID.String()] = oldID
	m.oldToNew[oldID.String()] = newID
}

// Old returns the source element id for a created element.
func (m *ElementMap) Old(newID looker.ID) (looker.ID, bool) {
	id, ok := m.newToOld[newID.String()]
	return id, ok
}

// New returns the created element id for a source element.
func (m *ElementMap) New(oldID looker.ID) (looker.ID, bool) {
	id, ok := m.oldToNew[oldID.String()]
	return id, ok
}

// Len returns the number of recorded pairs.
func (m *ElementMap) Len() int { return len(m.newToOld) }
