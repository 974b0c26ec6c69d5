package il

// Core library types. They are shared, immutable references scoped to
// CoreScope.
var (
	Object    = coreType("System", "Object", false)
	Void      = coreType("System", "Void", true)
	Boolean   = coreType("System", "Boolean", true)
	Int32     = coreType("System", "Int32", true)
	Int64     = coreType("System", "Int64", true)
	Double    = coreType("System", "Double", true)
	String    = coreType("System", "String", false)
	ValueType = coreType("System", "ValueType", false)
	Enum      = coreType("System", "Enum", false)
	Exception = coreType("System", "Exception", false)
	Type      = coreType("System", "Type", false)
	Attribute = coreType("System", "Attribute", false)

	// ValueTuple2 is the open System.ValueTuple`2 type.
	ValueTuple2 = coreGeneric("System", "ValueTuple`2", true, 2)
)

var coreTypes = map[string]*TypeReference{}

func coreType(namespace, name string, valueType bool) *TypeReference {
	r := &TypeReference{
		ScopeName:   CoreScope,
		Namespace:   namespace,
		Name:        name,
		IsValueType: valueType,
	}
	coreTypes[r.FullName()] = r

	return r
}

func coreGeneric(namespace, name string, valueType bool, arity int) *TypeReference {
	r := coreType(namespace, name, valueType)
	for i := range arity {
		r.GenericParameter(i)
	}

	return r
}

// CoreType returns the shared core reference with the given full name.
func CoreType(fullName string) (*TypeReference, bool) {
	r, ok := coreTypes[fullName]

	return r, ok
}

// ObjectConstructor returns a reference to System.Object::.ctor().
func ObjectConstructor() *MethodReference {
	return &MethodReference{
		DeclaringType: Object,
		Name:          ConstructorName,
		HasThis:       true,
		ReturnType:    Void,
	}
}

// IsVoid reports whether t is System.Void.
func IsVoid(t TypeRef) bool {
	return t == nil || t.FullName() == Void.FullName()
}
