package topology

import (
	"fmt"
	"sort"
)

// DefaultInterface is the lifecycle interface operations are looked up on
// when the caller does not name one.
const DefaultInterface = "Standard"

// Param is a single key/value pair from a properties or inputs mapping.
type Param struct {
	Key string

	// Value is the typed scalar handed to policy evaluation.
	Value any

	// Text is the scalar as written in the document. Empty for params
	// built in code, which render from Value instead.
	Text string
}

// String renders the value the way it is passed to external runners.
func (p Param) String() string {
	if p.Text != "" {
		return p.Text
	}
	return FormatValue(p.Value)
}

// Params is an ordered mapping. Order follows the topology document.
type Params []Param

// Get returns the value stored under key.
func (p Params) Get(key string) (any, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return nil, false
}

// Map returns the params as a plain map (order is lost).
func (p Params) Map() map[string]any {
	out := make(map[string]any, len(p))
	for _, param := range p {
		out[param.Key] = param.Value
	}
	return out
}

// FormatValue stringifies a scalar property or input value.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// NodeInstance is one concrete resource declared in the topology document.
type NodeInstance struct {
	// Name is the unique node template name.
	Name string `validate:"required"`

	// Type names the TypeDefinition this node is an instance of.
	Type string `validate:"required"`

	// Properties are the node's scalar properties in document order.
	Properties Params
}

// OperationDescriptor is the implementation artifact and declared inputs for
// one (interface, operation) pair on a type.
type OperationDescriptor struct {
	// Implementation is the artifact path, relative to the topology document.
	Implementation string `validate:"required"`

	// Inputs are the operation's declared inputs in document order.
	Inputs Params
}

// TypeDefinition declares which interfaces and operations a class of nodes
// supports and how each operation is implemented.
type TypeDefinition struct {
	// Name is the unique type name.
	Name string `validate:"required"`

	// DerivedFrom is recorded for display only; the resolver never follows it.
	DerivedFrom string

	// Interfaces maps interface name to operation name to descriptor.
	Interfaces map[string]map[string]OperationDescriptor
}

// OperationRef names one operation declared on a node's type.
type OperationRef struct {
	Interface string
	Operation string
}

// Model is the in-memory representation of a parsed topology document.
// It is immutable once returned by Load or Parse.
type Model struct {
	path    string
	baseDir string
	nodes   map[string]*NodeInstance
	types   map[string]*TypeDefinition
}

// Path returns the file the model was loaded from, if any.
func (m *Model) Path() string {
	return m.path
}

// BaseDir returns the directory implementation paths are relative to.
func (m *Model) BaseDir() string {
	return m.baseDir
}

// Node returns the node instance with the given name.
func (m *Model) Node(name string) (NodeInstance, bool) {
	n, ok := m.nodes[name]
	if !ok {
		return NodeInstance{}, false
	}
	return *n, true
}

// Type returns the type definition with the given name.
func (m *Model) Type(name string) (TypeDefinition, bool) {
	t, ok := m.types[name]
	if !ok {
		return TypeDefinition{}, false
	}
	return *t, true
}

// NodeNames returns all node names, sorted.
func (m *Model) NodeNames() []string {
	names := make([]string, 0, len(m.nodes))
	for name := range m.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operations lists every operation declared on the node's type, sorted by
// interface then operation name.
func (m *Model) Operations(nodeName string) ([]OperationRef, error) {
	node, ok := m.nodes[nodeName]
	if !ok {
		return nil, &ResolutionError{Kind: ErrNodeNotFound, Node: nodeName}
	}
	typeDef, ok := m.types[node.Type]
	if !ok {
		return nil, &ResolutionError{Kind: ErrTypeNotFound, Node: nodeName, Type: node.Type}
	}

	var refs []OperationRef
	for iface, ops := range typeDef.Interfaces {
		for op := range ops {
			refs = append(refs, OperationRef{Interface: iface, Operation: op})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Interface != refs[j].Interface {
			return refs[i].Interface < refs[j].Interface
		}
		return refs[i].Operation < refs[j].Operation
	})
	return refs, nil
}
