// Package preflight checks that the local environment can host the search
// index and the pending-reindex ledger before a long-running command starts.
//
// The checks cover:
//   - Write permissions in the index and ledger directories
//   - Disk space availability (minimum 100MB)
//   - File descriptor limits (minimum 1024)
//   - Ledger readability and failing marks
//   - Index presence
//   - Registry reachability
//
// Use the Checker type to run all checks:
//
//	checker := preflight.New(preflight.WithRegistry(lister))
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
