// Package executor drains decided ledger entries in fixed-size batches:
// import where required, verify catalog membership through the gate, then
// move the file out of the source tree. Every transition is persisted and
// audited before the next action, so a crash resumes exactly where the
// ledger says it stopped.
package executor
