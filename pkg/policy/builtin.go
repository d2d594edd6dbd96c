package policy

// ContainmentPolicyName is the name of the built-in artifact containment policy.
const ContainmentPolicyName = "artifact-containment"

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		artifactContainmentPolicy(),
		flagNamesPolicy(),
	}
}

// artifactContainmentPolicy denies artifacts that resolve outside the project
// root, for example through ../ segments in an implementation path.
func artifactContainmentPolicy() Policy {
	return Policy{
		Name:        ContainmentPolicyName,
		Description: "Implementation artifacts must resolve inside the project root",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package modelops.policies.containment

import rego.v1

deny contains violation if {
	input.root != ""
	not within(input.artifact.path, input.root)
	violation := {
		"message": sprintf("artifact %s resolves outside %s", [input.artifact.path, input.root]),
		"severity": "error",
	}
}

within(path, root) if path == root

within(path, root) if {
	prefix := concat("", [trim_suffix(root, "/"), "/"])
	startswith(path, prefix)
}
`,
	}
}

// flagNamesPolicy denies property and input keys a runner would misread as
// something other than a flag name, such as keys containing whitespace.
// Terraform invocations carry no flags and are exempt.
func flagNamesPolicy() Policy {
	return Policy{
		Name:        "flag-names",
		Description: "Property and input keys must be usable as runner flag names",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Rego: `package modelops.policies.flags

import rego.v1

deny contains violation if {
	input.artifact.kind != "terraform"
	some key, _ in input.properties
	not regex.match("^[A-Za-z_][A-Za-z0-9_.-]*$", key)
	violation := {
		"message": sprintf("property key %q is not a valid flag name", [key]),
		"severity": "error",
	}
}

deny contains violation if {
	input.artifact.kind != "terraform"
	some key, _ in input.inputs
	not regex.match("^[A-Za-z_][A-Za-z0-9_.-]*$", key)
	violation := {
		"message": sprintf("input key %q is not a valid flag name", [key]),
		"severity": "error",
	}
}
`,
	}
}
