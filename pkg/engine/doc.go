// Package engine turns resolved topology operations into audited process
// executions.
//
// # Overview
//
// An attempt moves through four steps:
//
//  1. Resolve - look up (node, interface, operation) in the topology model
//  2. Build - turn the operation descriptor into an Invocation (Builder)
//  3. Check - ask the optional PolicyGate whether the invocation may run
//  4. Execute - launch the process and audit it (Executor)
//
// Steps 1 to 3 have no side effects. A failure there returns a Response with
// StatusError and writes no audit record. An attempt that reaches the
// Executor always writes exactly two records, STARTED then SUCCESS or FAILED,
// sharing one attempt ID.
//
// # Building invocations
//
// The Builder classifies artifacts by extension:
//
//   - .tf runs the terraform runner with -chdir=<artifact dir> apply -auto-approve
//   - .ps1 runs pwsh with the absolute script path, then -key value for every
//     node property followed by every operation input
//   - .sh and .py run the shell or python runner with the same flags, when
//     those runners are configured
//
// Anything else is an UnsupportedArtifactError. Implementation paths resolve
// against the topology document's directory, never the working directory.
//
// # Errors
//
// Pre-execution failures are *EngineError values classified as permanent or
// transient and carrying a code such as NODE_NOT_FOUND, TYPE_NOT_FOUND,
// OPERATION_NOT_FOUND, UNSUPPORTED_ARTIFACT or POLICY_DENIED. The underlying
// topology errors stay reachable through errors.Is and errors.As. Process
// failures are never errors: they are ExecutionResult values with
// StatusFailed.
//
// # Example
//
//	model, err := topology.Load("modeling/topology.yaml")
//	if err != nil {
//	    return err
//	}
//	sink := audit.NewFileLogger(audit.DefaultPath(model.BaseDir()))
//	o := engine.NewOrchestrator(model,
//	    engine.NewBuilder(model.BaseDir(), engine.DefaultRunners()),
//	    engine.NewExecutor(sink),
//	)
//	resp := o.ExecuteOperation(ctx, "OpsVM", "start")
package engine
