// Package stores provides the SQLite audit mirror. Records are written next to
// the JSONL audit log and can be queried by node, status or attempt. The
// database runs in WAL mode and the audit_records table rejects UPDATE and
// DELETE through triggers.
package stores
