package topology

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Interface-level keys that carry metadata rather than operations.
var interfaceMetaKeys = map[string]bool{
	"type":          true,
	"description":   true,
	"inputs":        true,
	"notifications": true,
}

type rawDocument struct {
	NodeTypes        map[string]rawType `yaml:"node_types"`
	TopologyTemplate *rawTemplate       `yaml:"topology_template"`
	NodeTemplates    map[string]rawNode `yaml:"node_templates"`
}

type rawTemplate struct {
	NodeTemplates map[string]rawNode `yaml:"node_templates"`
}

type rawNode struct {
	Type       string    `yaml:"type"`
	Properties yaml.Node `yaml:"properties"`
}

type rawType struct {
	DerivedFrom string               `yaml:"derived_from"`
	Interfaces  map[string]yaml.Node `yaml:"interfaces"`
}

// Load reads and parses the topology document at path. Implementation paths
// in the document are resolved against the document's own directory.
func Load(path string) (*Model, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "resolve path", Err: err}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ParseError{Path: abs, Reason: "read document", Err: err}
	}

	model, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = abs
		}
		return nil, err
	}
	model.path = abs
	return model, nil
}

// Parse builds a Model from document bytes. baseDir is the directory that
// implementation paths are relative to. No partial model is returned.
func Parse(data []byte, baseDir string) (*Model, error) {
	var doc rawDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Reason: "malformed document", Err: err}
	}

	templates := doc.NodeTemplates
	if doc.TopologyTemplate != nil && doc.TopologyTemplate.NodeTemplates != nil {
		templates = doc.TopologyTemplate.NodeTemplates
	}
	if templates == nil {
		return nil, &ParseError{Reason: "missing topology_template.node_templates section"}
	}
	if doc.NodeTypes == nil {
		return nil, &ParseError{Reason: "missing node_types section"}
	}

	model := &Model{
		baseDir: baseDir,
		nodes:   make(map[string]*NodeInstance, len(templates)),
		types:   make(map[string]*TypeDefinition, len(doc.NodeTypes)),
	}

	for name, raw := range templates {
		props, err := decodeParams(&raw.Properties, fmt.Sprintf("node_templates.%s.properties", name))
		if err != nil {
			return nil, err
		}
		node := &NodeInstance{Name: name, Type: raw.Type, Properties: props}
		if err := validate.Struct(node); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("node template %q is invalid", name), Err: err}
		}
		model.nodes[name] = node
	}

	for name, raw := range doc.NodeTypes {
		typeDef, err := decodeType(name, raw)
		if err != nil {
			return nil, err
		}
		model.types[name] = typeDef
	}

	return model, nil
}

func decodeType(name string, raw rawType) (*TypeDefinition, error) {
	typeDef := &TypeDefinition{
		Name:        name,
		DerivedFrom: raw.DerivedFrom,
		Interfaces:  make(map[string]map[string]OperationDescriptor, len(raw.Interfaces)),
	}

	for ifaceName, ifaceNode := range raw.Interfaces {
		where := fmt.Sprintf("node_types.%s.interfaces.%s", name, ifaceName)
		ops := make(map[string]OperationDescriptor)
		if err := decodeOperations(resolveAlias(&ifaceNode), where, ops); err != nil {
			return nil, err
		}
		typeDef.Interfaces[ifaceName] = ops
	}

	if err := validate.Struct(typeDef); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("node type %q is invalid", name), Err: err}
	}
	return typeDef, nil
}

// decodeOperations accepts both the flat form (operations directly under the
// interface) and the nested "operations:" form.
func decodeOperations(node *yaml.Node, where string, into map[string]OperationDescriptor) error {
	if isEmpty(node) {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return &ParseError{Reason: where + " must be a mapping"}
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := resolveAlias(node.Content[i+1])

		if key == "operations" && value.Kind == yaml.MappingNode {
			if err := decodeOperations(value, where+".operations", into); err != nil {
				return err
			}
			continue
		}
		if interfaceMetaKeys[key] {
			continue
		}

		desc, err := decodeOperation(value, where+"."+key)
		if err != nil {
			return err
		}
		into[key] = desc
	}
	return nil
}

func decodeOperation(node *yaml.Node, where string) (OperationDescriptor, error) {
	var desc OperationDescriptor

	switch node.Kind {
	case yaml.ScalarNode:
		// Short form: the value is the implementation path.
		desc.Implementation = node.Value
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			value := resolveAlias(node.Content[i+1])
			switch key {
			case "implementation":
				impl, err := decodeImplementation(value, where)
				if err != nil {
					return desc, err
				}
				desc.Implementation = impl
			case "inputs":
				inputs, err := decodeParams(value, where+".inputs")
				if err != nil {
					return desc, err
				}
				desc.Inputs = inputs
			}
		}
	default:
		return desc, &ParseError{Reason: where + " must be a mapping or an implementation path"}
	}

	if err := validate.Struct(desc); err != nil {
		return desc, &ParseError{Reason: where + " has no implementation", Err: err}
	}
	return desc, nil
}

// decodeImplementation handles both "implementation: path" and
// "implementation: {primary: path}".
func decodeImplementation(node *yaml.Node, where string) (string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Value, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "primary" {
				primary := resolveAlias(node.Content[i+1])
				if primary.Kind == yaml.ScalarNode {
					return primary.Value, nil
				}
			}
		}
	}
	return "", &ParseError{Reason: where + ".implementation must be a path or a mapping with a primary path"}
}

func decodeParams(node *yaml.Node, where string) (Params, error) {
	node = resolveAlias(node)
	if isEmpty(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Reason: where + " must be a mapping"}
	}

	params := make(Params, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := resolveAlias(node.Content[i+1])

		// Parameter definitions carry their value under default or value.
		if value.Kind == yaml.MappingNode {
			value = definitionValue(value)
		}
		if value == nil || value.Kind != yaml.ScalarNode {
			return nil, &ParseError{Reason: fmt.Sprintf("%s.%s must be a scalar", where, key)}
		}

		v, err := decodeScalar(value)
		if err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("%s.%s could not be decoded", where, key), Err: err}
		}
		param := Param{Key: key, Value: v}
		if value.ShortTag() != "!!null" {
			param.Text = value.Value
		}
		params = append(params, param)
	}
	return params, nil
}

// decodeScalar keeps timestamps as their source text; every other scalar
// decodes to its YAML type.
func decodeScalar(node *yaml.Node) (any, error) {
	if node.ShortTag() == "!!timestamp" {
		return node.Value, nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func definitionValue(node *yaml.Node) *yaml.Node {
	var fallback *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "value":
			return resolveAlias(node.Content[i+1])
		case "default":
			fallback = resolveAlias(node.Content[i+1])
		}
	}
	return fallback
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

func isEmpty(node *yaml.Node) bool {
	return node == nil || node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}
