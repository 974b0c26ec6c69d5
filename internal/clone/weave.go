package clone

import (
	"fmt"

	"ilclone/internal/il"
)

// Predicate selects source elements for a weave.
type Predicate func(source il.Element) bool

// Transform rewrites the target of a cloner right after it is acquired and
// before it is populated.
type Transform func(target il.Element) error

type weave struct {
	match     Predicate
	transform Transform
}

// Weave registers a transform for the source elements matched by p. Weaves
// are tried in registration order and only the first match runs.
func (c *Context) Weave(p Predicate, t Transform) {
	c.weaves = append(c.weaves, weave{match: p, transform: t})
}

func (c *Context) applyWeave(source, target il.Element) error {
	for _, w := range c.weaves {
		if !w.match(source) {
			continue
		}

		if err := w.transform(target); err != nil {
			return wrap(ErrInvalidOperation, source, err)
		}

		return nil
	}

	return nil
}

// Is matches exactly el.
func Is(el il.Element) Predicate {
	return func(source il.Element) bool { return source == el }
}

// Named matches types and members by simple name. Types also match by
// full name.
func Named(name string) Predicate {
	return func(source il.Element) bool {
		if t, ok := source.(*il.TypeDef); ok && t.FullName() == name {
			return true
		}

		n, ok := simpleName(source)

		return ok && n == name
	}
}

// OfKind matches every element of kind k.
func OfKind(k il.Kind) Predicate {
	return func(source il.Element) bool { return source.Kind() == k }
}

// And matches elements matched by every predicate.
func And(ps ...Predicate) Predicate {
	return func(source il.Element) bool {
		for _, p := range ps {
			if !p(source) {
				return false
			}
		}

		return true
	}
}

// Rename sets the name of a type or member target.
func Rename(name string) Transform {
	return func(target il.Element) error {
		switch t := target.(type) {
		case *il.TypeDef:
			t.Name = name
		case *il.MethodDef:
			t.Name = name
		case *il.FieldDef:
			t.Name = name
		case *il.PropertyDef:
			t.Name = name
		case *il.EventDef:
			t.Name = name
		case *il.Parameter:
			t.Name = name
		case *il.GenericParameter:
			t.Name = name
		default:
			return fmt.Errorf("cannot rename %s %s", target.Kind(), target)
		}

		return nil
	}
}

func simpleName(el il.Element) (string, bool) {
	switch el := el.(type) {
	case *il.TypeDef:
		return el.Name, true
	case *il.MethodDef:
		return el.Name, true
	case *il.FieldDef:
		return el.Name, true
	case *il.PropertyDef:
		return el.Name, true
	case *il.EventDef:
		return el.Name, true
	case *il.Parameter:
		return el.Name, true
	case *il.GenericParameter:
		return el.Name, true
	}

	return "", false
}
