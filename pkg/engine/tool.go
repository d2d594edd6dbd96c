package engine

// ToolInterface is the interface name tool attempts are audited under.
const ToolInterface = "Tools"

// Tool is an operation implemented outside the topology document, such as a
// monitoring query. Its implementation is classified and built like any
// operation artifact; params are passed as flags.
type Tool struct {
	// Name is the operation name recorded in the audit log.
	Name string `yaml:"name" toml:"name"`

	// Implementation is the artifact path. Relative paths resolve against
	// the builder's base directory.
	Implementation string `yaml:"implementation" toml:"implementation"`
}
