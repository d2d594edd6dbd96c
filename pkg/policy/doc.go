// Package policy gates operation attempts with Open Policy Agent (OPA) Rego
// policies.
//
// An Engine holds compiled policies and implements engine.PolicyGate. The
// orchestrator calls Check after an invocation is built and before it runs;
// a blocking violation rejects the attempt with POLICY_DENIED and nothing is
// executed or audited.
//
// # Built-in policies
//
//   - artifact-containment denies artifacts that resolve outside the project
//     root (by default the parent of the topology directory)
//   - flag-names denies property and input keys that cannot be passed as
//     runner flags
//
// # Custom policies
//
// Policies are loaded from .rego files or .json definitions. Each module must
// define a deny set; members are either strings or objects with message and
// severity fields:
//
//	package modelops.custom
//
//	import rego.v1
//
//	deny contains msg if {
//	    input.operation == "destroy"
//	    msg := sprintf("destroy is disabled for %s", [input.node])
//	}
//
// The input document carries node, type, interface, operation, base_dir,
// root, artifact (path, kind, program, args), properties and inputs.
//
// Violations with severity error or critical block. Warnings are logged.
// An evaluation failure rejects the attempt.
package policy
