package topology

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	Node       NodeInstance
	Type       string
	Interface  string
	Operation  string
	Descriptor OperationDescriptor
}

// Resolve looks up the implementation of operation op on interface iface of
// the named node's type. It performs no I/O and has no side effects, so it is
// safe to call from validation and dry-run tooling.
func Resolve(m *Model, nodeName, iface, op string) (Resolved, error) {
	node, ok := m.nodes[nodeName]
	if !ok {
		return Resolved{}, &ResolutionError{Kind: ErrNodeNotFound, Node: nodeName, Interface: iface, Operation: op}
	}

	typeDef, ok := m.types[node.Type]
	if !ok {
		return Resolved{}, &ResolutionError{Kind: ErrTypeNotFound, Node: nodeName, Type: node.Type, Interface: iface, Operation: op}
	}

	ops, ok := typeDef.Interfaces[iface]
	if !ok {
		return Resolved{}, &ResolutionError{Kind: ErrOperationNotFound, Node: nodeName, Type: node.Type, Interface: iface, Operation: op}
	}
	desc, ok := ops[op]
	if !ok {
		return Resolved{}, &ResolutionError{Kind: ErrOperationNotFound, Node: nodeName, Type: node.Type, Interface: iface, Operation: op}
	}

	return Resolved{
		Node:       *node,
		Type:       node.Type,
		Interface:  iface,
		Operation:  op,
		Descriptor: desc,
	}, nil
}

// Resolve is the method form of the package-level Resolve.
func (m *Model) Resolve(nodeName, iface, op string) (Resolved, error) {
	return Resolve(m, nodeName, iface, op)
}
