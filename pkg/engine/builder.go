package engine

import (
	"path/filepath"
	"strings"

	"github.com/openfroyo/modelops/pkg/topology"
)

// Runners names the executables used for each artifact kind. Shell and Python
// are disabled while empty.
type Runners struct {
	Terraform  string `yaml:"terraform" toml:"terraform"`
	PowerShell string `yaml:"powershell" toml:"powershell"`
	Shell      string `yaml:"shell" toml:"shell"`
	Python     string `yaml:"python" toml:"python"`
}

// DefaultRunners returns the runners enabled out of the box.
func DefaultRunners() Runners {
	return Runners{
		Terraform:  "terraform",
		PowerShell: "pwsh",
	}
}

// Builder turns operation descriptors into invocations.
type Builder struct {
	// BaseDir is the directory implementation paths are relative to,
	// normally the topology document's directory.
	BaseDir string

	// Runners selects the executable per artifact kind.
	Runners Runners
}

// NewBuilder creates a builder rooted at baseDir. Empty Terraform and
// PowerShell runners fall back to the defaults.
func NewBuilder(baseDir string, runners Runners) *Builder {
	def := DefaultRunners()
	if runners.Terraform == "" {
		runners.Terraform = def.Terraform
	}
	if runners.PowerShell == "" {
		runners.PowerShell = def.PowerShell
	}
	return &Builder{BaseDir: baseDir, Runners: runners}
}

// ArtifactPath resolves an implementation path against the base directory.
func (b *Builder) ArtifactPath(implementation string) string {
	if filepath.IsAbs(implementation) {
		return filepath.Clean(implementation)
	}
	return filepath.Clean(filepath.Join(b.BaseDir, implementation))
}

// Classify maps an implementation path to its artifact kind.
func (b *Builder) Classify(implementation string) (ArtifactKind, error) {
	ext := strings.ToLower(filepath.Ext(implementation))
	switch {
	case ext == ".tf" && b.Runners.Terraform != "":
		return ArtifactTerraform, nil
	case ext == ".ps1" && b.Runners.PowerShell != "":
		return ArtifactPowerShell, nil
	case ext == ".sh" && b.Runners.Shell != "":
		return ArtifactShell, nil
	case ext == ".py" && b.Runners.Python != "":
		return ArtifactPython, nil
	}
	return "", &UnsupportedArtifactError{Kind: ext, Implementation: implementation}
}

// Build constructs the invocation for desc. Provisioning artifacts run the
// terraform runner scoped to the artifact's directory with no flag injection.
// Script artifacts get the absolute script path followed by one -key value
// pair per property, then per input, in document order.
func (b *Builder) Build(desc topology.OperationDescriptor, properties topology.Params) (Invocation, error) {
	kind, err := b.Classify(desc.Implementation)
	if err != nil {
		return Invocation{}, err
	}
	artifact := b.ArtifactPath(desc.Implementation)

	inv := Invocation{Kind: kind, ArtifactPath: artifact}
	switch kind {
	case ArtifactTerraform:
		inv.Program = b.Runners.Terraform
		inv.Args = []string{"-chdir=" + filepath.Dir(artifact), "apply", "-auto-approve"}
		return inv, nil
	case ArtifactPowerShell:
		inv.Program = b.Runners.PowerShell
	case ArtifactShell:
		inv.Program = b.Runners.Shell
	case ArtifactPython:
		inv.Program = b.Runners.Python
	}

	args := make([]string, 0, 1+2*(len(properties)+len(desc.Inputs)))
	args = append(args, artifact)
	args = appendFlags(args, properties)
	args = appendFlags(args, desc.Inputs)
	inv.Args = args
	return inv, nil
}

func appendFlags(args []string, params topology.Params) []string {
	for _, p := range params {
		args = append(args, "-"+p.Key, p.String())
	}
	return args
}
