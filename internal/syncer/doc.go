// Package syncer runs a full directory refresh: every catalog region is
// fetched and reconciled in order, one at a time, with a pause between
// regions. A failing region is recorded and skipped; it never stops the run.
package syncer
