package recipe

import (
	"errors"
	"fmt"
	"strings"

	"ilclone/internal/clone"
	"ilclone/internal/common"
	"ilclone/internal/il"
)

// ErrSignature is returned when a wrapper or placeholder does not have the
// signature of the decorated method.
var ErrSignature = errors.New("signature mismatch")

// Decoration wraps Target with the Wrapper method of Decorator. Inside the
// wrapper, calls to the Placeholder method stand for calls to Target.
type Decoration struct {
	Target      *il.MethodDef
	Decorator   *il.TypeDef
	Wrapper     string
	Placeholder string
}

// Decorate merges the decorator type into the type declaring the target.
// The wrapper takes over the name and attributes of the target, the target
// itself is renamed and made private, and the placeholder is dropped after
// its callers have been pointed at the target. configure may register
// weaves on the merge before it runs. Decorate returns the wrapper.
func Decorate(d Decoration, configure ...func(*clone.Context)) (*il.MethodDef, error) {
	if d.Target == nil || d.Target.DeclaringType == nil {
		return nil, fmt.Errorf("%w: no method to decorate", ErrNotFound)
	}

	if d.Decorator == nil {
		return nil, fmt.Errorf("%w: no decorator type", ErrNotFound)
	}

	if d.Placeholder == "" {
		d.Placeholder = DefaultPlaceholder
	}

	wrapper := d.Decorator.Method(d.Wrapper)
	if wrapper == nil {
		return nil, fmt.Errorf("%w: method %s of %s", ErrNotFound, d.Wrapper, d.Decorator)
	}

	placeholder := d.Decorator.Method(d.Placeholder)
	if placeholder == nil {
		return nil, fmt.Errorf("%w: method %s of %s", ErrNotFound, d.Placeholder, d.Decorator)
	}

	for _, m := range []*il.MethodDef{wrapper, placeholder} {
		if shape(m) != shape(d.Target) {
			return nil, fmt.Errorf("%w: %s does not match %s", ErrSignature, m.FullName(), d.Target.FullName())
		}
	}

	owner := d.Target.DeclaringType

	taken := common.NewNames()
	for _, m := range owner.Methods {
		taken.Reserve(m.Name)
	}

	name, attrs := d.Target.Name, d.Target.Attributes
	standIn := taken.Fresh(d.Placeholder + "_")

	ctx, err := clone.New(d.Decorator, clone.IntoType(owner))
	if err != nil {
		return nil, err
	}

	ctx.Weave(clone.Is(wrapper), clone.Rename(name))
	ctx.Weave(clone.Is(placeholder), clone.Rename(standIn))

	for _, fn := range configure {
		fn(ctx)
	}

	d.Target.Name = taken.Fresh(name + "_inner")

	if err := ctx.Execute(); err != nil {
		return nil, err
	}

	wrapped, ok := single(ctx.TargetsOf(wrapper))
	if !ok {
		return nil, fmt.Errorf("%w: wrapper %s was not cloned", clone.ErrDispatchGap, wrapper.FullName())
	}

	stand, ok := single(ctx.TargetsOf(placeholder))
	if !ok {
		return nil, fmt.Errorf("%w: placeholder %s was not cloned", clone.ErrDispatchGap, placeholder.FullName())
	}

	retarget(owner, stand, d.Target)
	owner.RemoveMethod(stand)

	wrapped.Attributes = attrs
	d.Target.Attributes = attrs&^(il.MethodAccessMask|il.MethodVirtual|il.MethodNewSlot|il.MethodFinal) | il.MethodPrivate

	return wrapped, nil
}

func single(targets []il.Element) (*il.MethodDef, bool) {
	if len(targets) != 1 {
		return nil, false
	}

	m, ok := targets[0].(*il.MethodDef)

	return m, ok
}

// shape renders the parts of a signature a wrapper must share with the
// method it wraps.
func shape(m *il.MethodDef) string {
	ret, params := m.Signature()

	keys := make([]string, len(params))
	for i, p := range params {
		keys[i] = il.TypeKey(p)
	}

	kind := "static"
	if m.Instance() {
		kind = "instance"
	}

	return kind + " " + il.TypeKey(ret) + "(" + strings.Join(keys, ",") + ")"
}

// retarget points every call to from inside t and its nested types at to.
func retarget(t *il.TypeDef, from, to *il.MethodDef) {
	for _, m := range t.Methods {
		if m.Body == nil {
			continue
		}

		for _, ins := range m.Body.Instructions {
			switch op := ins.Operand.(type) {
			case *il.MethodDef:
				if op == from {
					ins.Operand = to
				}
			case *il.GenericInstanceMethod:
				if op.ElementMethod == from {
					op.ElementMethod = to
				}
			}
		}
	}

	for _, n := range t.NestedTypes {
		retarget(n, from, to)
	}
}
