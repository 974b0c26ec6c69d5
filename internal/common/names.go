package common

import "strconv"

// UnknownStr is the rendering of an enum value outside its range.
const UnknownStr = "unknown"

// Names is the set of names in use within one scope, such as the methods of
// a type. The zero value is not usable; create one with NewNames.
type Names struct {
	taken map[string]struct{}
}

// NewNames returns a set holding names.
func NewNames(names ...string) *Names {
	n := &Names{taken: make(map[string]struct{}, len(names))}
	n.Reserve(names...)

	return n
}

// Reserve marks names as used.
func (n *Names) Reserve(names ...string) {
	for _, name := range names {
		n.taken[name] = struct{}{}
	}
}

// Has reports whether name is used.
func (n *Names) Has(name string) bool {
	_, ok := n.taken[name]
	return ok
}

// Fresh reserves and returns the first of stem+"1", stem+"2", ... that is
// not used yet.
func (n *Names) Fresh(stem string) string {
	for i := 1; ; i++ {
		name := stem + strconv.Itoa(i)
		if !n.Has(name) {
			n.Reserve(name)
			return name
		}
	}
}
