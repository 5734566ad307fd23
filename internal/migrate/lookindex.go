package migrate

import "github.com/lherron/lkmig/internal/looker"

type lookKey struct {
	space string
	title string
}

// LookIndex finds target looks by destination space id and exact title.
// When several looks share a key the first one added wins, matching a linear
// scan of the same list. It must not be modified once dashboards are being
// imported.
type LookIndex struct {
	byKey map[lookKey]looker.ID
}

// NewLookIndex indexes looks in order.
func NewLookIndex(looks []looker.Look) *LookIndex {
	x := &LookIndex{byKey: make(map[lookKey]looker.ID, len(looks))}
	for i := range looks {
		l := &looks[i]
		space := l.SpaceID
		if space.IsZero() && l.Space != nil {
			space = l.Space.ID
		}
		x.Add(space, l.Title, l.ID)
	}
	return x
}

// Add records a look unless one with the same space and title exists.
func (x *LookIndex) Add(spaceID looker.ID, title string, id looker.ID) {
	if spaceID.IsZero() {
		return
	}
	k := lookKey{space: spaceID.String(), title: title}
	if _, ok := x.byKey[k]; ok {
		return
	}
	x.byKey[k] = id
}

// Find returns the id of the look titled title in space spaceID.
func (x *LookIndex) Find(spaceID looker.ID, title string) (looker.ID, bool) {
	if x == nil {
		return looker.ID{}, false
	}
	id, ok := x.byKey[lookKey{space: spaceID.String(), title: title}]
	return id, ok
}

// Len returns the number of indexed looks.
func (x *LookIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.byKey)
}
