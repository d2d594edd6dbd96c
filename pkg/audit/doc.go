// Package audit records every operation attempt that reaches the executor.
//
// An attempt produces exactly two records sharing an attempt ID: STARTED,
// written just before the external process is launched, and a terminal
// SUCCESS or FAILED record written once the outcome is known. Records are
// append-only. FileLogger stores them as newline-delimited JSON; Multi fans
// them out to several sinks such as the SQLite mirror in package stores.
package audit
