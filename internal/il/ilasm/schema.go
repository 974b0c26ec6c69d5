// Package ilasm reads and writes modules in a YAML text form.
//
// A file declares one module, the modules it may reference and its types.
// Method bodies are lists of instructions, one per line:
//
//	body:
//	  - ldarg this
//	  - call instance void object::.ctor()
//	  - "L1: ret"
//
// Type names use the syntax of il.TypeRef.FullName with a few additions:
// the primitives void, bool, int32, int64, float64, string and object;
// "[Scope]Ns.Name" for types of other modules; "!N" and "!!N" for the N-th
// generic parameter of the enclosing type and method; "T<A,B>" for generic
// instances and "T[]" for arrays.
package ilasm

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"ilclone/internal/common"
)

// File is the YAML document of one module.
type File struct {
	Module     string     `yaml:"module"`
	References []string   `yaml:"references,omitempty"`
	Types      []TypeDecl `yaml:"types,omitempty"`
}

// TypeDecl declares a type. Top-level types are named "Ns.Name", nested
// types by their simple name.
type TypeDecl struct {
	Name       string          `yaml:"name"`
	Flags      StringOrArray   `yaml:"flags,omitempty"`
	Base       string          `yaml:"base,omitempty"`
	Interfaces []string        `yaml:"interfaces,omitempty"`
	Generic    []GenericDecl   `yaml:"generic,omitempty"`
	Packing    int16           `yaml:"packing,omitempty"`
	Size       int32           `yaml:"size,omitempty"`
	Custom     []AttributeDecl `yaml:"custom,omitempty"`
	Fields     []FieldDecl     `yaml:"fields,omitempty"`
	Methods    []MethodDecl    `yaml:"methods,omitempty"`
	Properties []PropertyDecl  `yaml:"properties,omitempty"`
	Events     []EventDecl     `yaml:"events,omitempty"`
	Nested     []TypeDecl      `yaml:"nested,omitempty"`
}

// GenericDecl declares a generic parameter. A plain scalar is a name.
type GenericDecl struct {
	Name        string        `yaml:"name"`
	Flags       StringOrArray `yaml:"flags,omitempty"`
	Constraints []string      `yaml:"constraints,omitempty"`
}

// FieldDecl declares a field.
type FieldDecl struct {
	Name     string          `yaml:"name"`
	Type     string          `yaml:"type"`
	Flags    StringOrArray   `yaml:"flags,omitempty"`
	Constant any             `yaml:"constant,omitempty"`
	Custom   []AttributeDecl `yaml:"custom,omitempty"`
}

// MethodDecl declares a method and its body. A method without body lines
// has no body.
type MethodDecl struct {
	Name       string          `yaml:"name"`
	Flags      StringOrArray   `yaml:"flags,omitempty"`
	Impl       StringOrArray   `yaml:"impl,omitempty"`
	Returns    string          `yaml:"returns,omitempty"`
	Generic    []GenericDecl   `yaml:"generic,omitempty"`
	Parameters []ParamDecl     `yaml:"parameters,omitempty"`
	Custom     []AttributeDecl `yaml:"custom,omitempty"`
	MaxStack   int             `yaml:"maxstack,omitempty"`
	InitLocals *bool           `yaml:"initlocals,omitempty"`
	Scope      bool            `yaml:"scope,omitempty"`
	Locals     []string        `yaml:"locals,omitempty"`
	Body       []string        `yaml:"body,omitempty"`
	Handlers   []HandlerDecl   `yaml:"handlers,omitempty"`
}

// ParamDecl declares a method parameter.
type ParamDecl struct {
	Name     string          `yaml:"name"`
	Type     string          `yaml:"type"`
	Flags    StringOrArray   `yaml:"flags,omitempty"`
	Constant any             `yaml:"constant,omitempty"`
	Custom   []AttributeDecl `yaml:"custom,omitempty"`
}

// PropertyDecl declares a property; accessors name methods of the same type.
type PropertyDecl struct {
	Name   string          `yaml:"name"`
	Type   string          `yaml:"type"`
	Flags  StringOrArray   `yaml:"flags,omitempty"`
	Get    string          `yaml:"get,omitempty"`
	Set    string          `yaml:"set,omitempty"`
	Custom []AttributeDecl `yaml:"custom,omitempty"`
}

// EventDecl declares an event; accessors name methods of the same type.
type EventDecl struct {
	Name   string          `yaml:"name"`
	Type   string          `yaml:"type"`
	Flags  StringOrArray   `yaml:"flags,omitempty"`
	Add    string          `yaml:"add,omitempty"`
	Remove string          `yaml:"remove,omitempty"`
	Invoke string          `yaml:"invoke,omitempty"`
	Custom []AttributeDecl `yaml:"custom,omitempty"`
}

// AttributeDecl is a custom attribute: a constructor reference and its
// arguments.
type AttributeDecl struct {
	Ctor string    `yaml:"ctor"`
	Args []ArgDecl `yaml:"args,omitempty"`
}

// ArgDecl is one attribute argument. Values of type System.Type are type
// names.
type ArgDecl struct {
	Type  string `yaml:"type"`
	Value any    `yaml:"value,omitempty"`
}

// HandlerDecl declares an exception handler by instruction labels. An empty
// end label means the end of the body.
type HandlerDecl struct {
	Kind         string `yaml:"kind"`
	TryStart     string `yaml:"try"`
	TryEnd       string `yaml:"try-end,omitempty"`
	FilterStart  string `yaml:"filter,omitempty"`
	HandlerStart string `yaml:"handler"`
	HandlerEnd   string `yaml:"handler-end,omitempty"`
	Catch        string `yaml:"catch,omitempty"`
}

// StringOrArray is a list that may be written as a single scalar.
type StringOrArray []string

// UnmarshalYAML accepts either a single string or an array of strings.
func (s *StringOrArray) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var str string

		if err := node.Decode(&str); err != nil {
			return err
		}

		if str != "" {
			*s = StringOrArray{str}
		} else {
			*s = StringOrArray{}
		}

		return nil

	case yaml.SequenceNode:
		var arr []string

		if err := node.Decode(&arr); err != nil {
			return err
		}

		*s = arr

		return nil

	default:
		return fmt.Errorf("expected string or array, got %v", node.Kind)
	}
}

// MarshalYAML writes a single element as a scalar.
func (s StringOrArray) MarshalYAML() (any, error) {
	if common.IsSingle(s) {
		return s[0], nil
	}

	return []string(s), nil
}

// UnmarshalYAML accepts a bare name or a full mapping.
func (g *GenericDecl) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&g.Name)
	}

	type plain GenericDecl

	return node.Decode((*plain)(g))
}

// MarshalYAML writes an unconstrained parameter as its name.
func (g GenericDecl) MarshalYAML() (any, error) {
	if common.IsEmpty(g.Flags) && common.IsEmpty(g.Constraints) {
		return g.Name, nil
	}

	type plain GenericDecl

	return plain(g), nil
}
