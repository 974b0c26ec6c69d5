package recipe

import (
	"errors"
	"fmt"

	"ilclone/internal/clone"
	"ilclone/internal/common"
	"ilclone/internal/il"
)

// ErrInvalid is returned by Apply for recipes that fail validation.
var ErrInvalid = errors.New("invalid recipe")

// ErrNotFound is returned when a type named by a recipe does not exist.
var ErrNotFound = errors.New("type not found")

// Resolver loads modules by name.
type Resolver interface {
	Resolve(name string) (*il.Module, error)
}

// Result is the outcome of a successful Apply.
type Result struct {
	// Module is the target module, modified in place.
	Module *il.Module
	// Types are the root targets in recipe order.
	Types []*il.TypeDef
	// Wrapped is the decorated method of a Wrap recipe.
	Wrapped *il.MethodDef
}

type access struct {
	method il.MethodAttributes
	field  il.FieldAttributes
}

var accessLevels = map[string]access{
	"public":   {il.MethodPublic, il.FieldPublic},
	"private":  {il.MethodPrivate, il.FieldPrivate},
	"family":   {il.MethodFamily, il.FieldFamily},
	"assembly": {il.MethodAssembly, il.FieldAssembly},
}

// Apply runs r against the modules of resolver. The target module is
// modified in place; it is unusable after a failure.
func (r *Recipe) Apply(resolver Resolver) (*Result, error) {
	if d := Validate(r); !d.IsValid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, d.Error())
	}

	source, err := lookup(resolver, r.Source.Module, r.Source.Type)
	if err != nil {
		return nil, err
	}

	module, err := resolver.Resolve(r.Targets[0].Module)
	if err != nil {
		return nil, err
	}

	targets := make([]clone.Target, len(r.Targets))

	for i, t := range r.Targets {
		if !t.Merging() {
			targets[i] = clone.IntoModule(module, t.Namespace, t.Name)
			continue
		}

		existing := module.Type(t.Type)
		if existing == nil {
			return nil, notFound(module, t.Type)
		}

		targets[i] = clone.IntoType(existing)
	}

	if r.Wrap != nil {
		return r.applyWrap(source, module.Type(r.Targets[0].Type))
	}

	ctx, err := clone.New(source, targets...)
	if err != nil {
		return nil, err
	}

	r.weave(ctx)

	if err := ctx.Execute(); err != nil {
		return nil, err
	}

	return &Result{Module: module, Types: ctx.Targets()}, nil
}

func (r *Recipe) applyWrap(source, owner *il.TypeDef) (*Result, error) {
	method := owner.Method(r.Wrap.Method)
	if method == nil {
		return nil, fmt.Errorf("%w: method %s of %s", ErrNotFound, r.Wrap.Method, owner)
	}

	wrapped, err := Decorate(Decoration{
		Target:      method,
		Decorator:   source,
		Wrapper:     r.Wrap.Wrapper,
		Placeholder: r.Wrap.Placeholder,
	}, r.weave)
	if err != nil {
		return nil, err
	}

	return &Result{Module: owner.Module, Types: []*il.TypeDef{owner}, Wrapped: wrapped}, nil
}

func (r *Recipe) weave(ctx *clone.Context) {
	for _, w := range r.Weaves {
		match := clone.Named(w.Match)
		if k, ok := parseKind(w.Kind); ok {
			match = clone.And(clone.OfKind(k), match)
		}

		ctx.Weave(match, transform(w))
	}
}

func transform(w Weave) clone.Transform {
	var steps []clone.Transform

	if w.Rename != "" {
		steps = append(steps, clone.Rename(w.Rename))
	}

	if level, ok := accessLevels[w.Access]; ok {
		steps = append(steps, setAccess(level))
	}

	return func(target il.Element) error {
		for _, step := range steps {
			if err := step(target); err != nil {
				return err
			}
		}

		return nil
	}
}

func setAccess(level access) clone.Transform {
	return func(target il.Element) error {
		switch t := target.(type) {
		case *il.MethodDef:
			t.Attributes = t.Attributes&^il.MethodAccessMask | level.method
		case *il.FieldDef:
			t.Attributes = t.Attributes&^il.FieldAccessMask | level.field
		default:
			return fmt.Errorf("cannot change access of %s %s", target.Kind(), target)
		}

		return nil
	}
}

func lookup(resolver Resolver, module, name string) (*il.TypeDef, error) {
	m, err := resolver.Resolve(module)
	if err != nil {
		return nil, err
	}

	t := m.Type(name)
	if t == nil {
		return nil, notFound(m, name)
	}

	return t, nil
}

func notFound(m *il.Module, name string) error {
	var names []string

	m.EachType(func(t *il.TypeDef) bool {
		names = append(names, t.FullName())
		return true
	})

	if c, ok := common.Closest(name, names); ok {
		return fmt.Errorf("%w: %s in module %s, did you mean %s?", ErrNotFound, name, m.Name, c)
	}

	return fmt.Errorf("%w: %s in module %s", ErrNotFound, name, m.Name)
}
