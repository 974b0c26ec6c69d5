package il

import "fmt"

// ScopeError reports a symbol whose defining module is not visible from the
// importing module.
type ScopeError struct {
	Module string
	Scope  string
	Symbol string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s: module %q cannot see %q; add a direct module reference",
		e.Symbol, e.Module, e.Scope)
}

func (m *Module) checkScope(t TypeRef) error {
	if m.CanReference(t.Scope()) {
		return nil
	}

	return &ScopeError{Module: m.Name, Scope: t.Scope(), Symbol: t.FullName()}
}

// ImportType returns a reference to t usable from m. Definitions of m and
// references already held by m are returned unchanged.
func (m *Module) ImportType(t TypeRef) (TypeRef, error) {
	switch t := t.(type) {
	case nil:
		return nil, nil

	case *TypeDef:
		if t.Module == m {
			return t, nil
		}

		if err := m.checkScope(t); err != nil {
			return nil, err
		}

		return m.referenceTo(t)

	case *TypeReference:
		if t.Module == nil || t.Module == m {
			return t, nil
		}

		if t.ScopeName == m.Name {
			if def := m.Type(t.FullName()); def != nil {
				return def, nil
			}
		}

		if err := m.checkScope(t); err != nil {
			return nil, err
		}

		copied := *t
		copied.Module = m

		if t.DeclaringType != nil {
			decl, err := m.ImportType(t.DeclaringType)
			if err != nil {
				return nil, err
			}

			if ref, ok := decl.(*TypeReference); ok {
				copied.DeclaringType = ref
			}
		}

		return &copied, nil

	case *GenericParameter:
		return t, nil

	case *ArrayType:
		elem, err := m.ImportType(t.ElementType)
		if err != nil {
			return nil, err
		}

		if elem == t.ElementType {
			return t, nil
		}

		return &ArrayType{ElementType: elem, Rank: t.Rank}, nil

	case *GenericInstanceType:
		elem, err := m.ImportType(t.ElementType)
		if err != nil {
			return nil, err
		}

		args, changed, err := m.importTypes(t.Arguments)
		if err != nil {
			return nil, err
		}

		if elem == t.ElementType && !changed {
			return t, nil
		}

		return &GenericInstanceType{ElementType: elem, Arguments: args}, nil

	default:
		return nil, fmt.Errorf("cannot import type %T", t)
	}
}

func (m *Module) referenceTo(t *TypeDef) (*TypeReference, error) {
	ref := &TypeReference{
		Module:      m,
		ScopeName:   t.Scope(),
		Namespace:   t.Namespace,
		Name:        t.Name,
		IsValueType: t.ValueType(),
	}

	if t.DeclaringType != nil {
		decl, err := m.referenceTo(t.DeclaringType)
		if err != nil {
			return nil, err
		}

		ref.DeclaringType = decl
	}

	for i := range t.GenericParameters {
		ref.GenericParameter(i)
	}

	return ref, nil
}

func (m *Module) importTypes(types []TypeRef) ([]TypeRef, bool, error) {
	out := make([]TypeRef, len(types))
	changed := false

	for i, t := range types {
		imported, err := m.ImportType(t)
		if err != nil {
			return nil, false, err
		}

		out[i] = imported
		changed = changed || imported != t
	}

	return out, changed, nil
}

// ImportMethod returns a reference to method usable from m.
func (m *Module) ImportMethod(method MethodRef) (MethodRef, error) {
	switch method := method.(type) {
	case nil:
		return nil, nil

	case *MethodDef:
		if method.DeclaringType != nil && method.DeclaringType.Module == m {
			return method, nil
		}

		return m.importSignature(method.DeclaringTypeRef(), method)

	case *MethodReference:
		ref, err := m.importSignature(method.DeclaringType, method)
		if err != nil {
			return nil, err
		}

		ref.GenericParameters = method.GenericParameters

		return ref, nil

	case *GenericInstanceMethod:
		elem, err := m.ImportMethod(method.ElementMethod)
		if err != nil {
			return nil, err
		}

		args, _, err := m.importTypes(method.Arguments)
		if err != nil {
			return nil, err
		}

		return &GenericInstanceMethod{ElementMethod: elem, Arguments: args}, nil

	default:
		return nil, fmt.Errorf("cannot import method %T", method)
	}
}

func (m *Module) importSignature(declaring TypeRef, method MethodRef) (*MethodReference, error) {
	decl, err := m.ImportType(declaring)
	if err != nil {
		return nil, err
	}

	ret, params := method.Signature()

	importedRet, err := m.ImportType(ret)
	if err != nil {
		return nil, err
	}

	importedParams, _, err := m.importTypes(params)
	if err != nil {
		return nil, err
	}

	return &MethodReference{
		DeclaringType:  decl,
		Name:           method.MethodName(),
		HasThis:        method.Instance(),
		ReturnType:     importedRet,
		ParameterTypes: importedParams,
	}, nil
}

// ImportField returns a reference to field usable from m.
func (m *Module) ImportField(field FieldRef) (FieldRef, error) {
	if field == nil {
		return nil, nil
	}

	if def, ok := field.(*FieldDef); ok && def.DeclaringType != nil && def.DeclaringType.Module == m {
		return def, nil
	}

	decl, err := m.ImportType(field.DeclaringTypeRef())
	if err != nil {
		return nil, err
	}

	t, err := m.ImportType(field.Type())
	if err != nil {
		return nil, err
	}

	return &FieldReference{DeclaringType: decl, Name: field.FieldName(), FieldType: t}, nil
}
