// Package topology loads topology documents and resolves operations on them.
//
// A topology document declares node types, each with interfaces mapping
// operation names to implementation artifacts, and node templates that
// instantiate those types with scalar properties:
//
//	node_types:
//	  ComputeNode:
//	    interfaces:
//	      Standard:
//	        start:
//	          implementation: scripts/start.ps1
//	          inputs: {mode: fast}
//	topology_template:
//	  node_templates:
//	    OpsVM:
//	      type: ComputeNode
//	      properties: {region: eastus}
//
// Only the fields above are consumed; everything else in the document is
// ignored. A loaded Model is read-only, and Resolve is a pure function of it.
package topology
