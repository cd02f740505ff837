// Package progress renders run progress on a terminal.
//
// The Reporter implements domain.ProgressSink. Counters are updated from
// worker goroutines; byte progress arrives on a buffered channel that
// fetchers send to without blocking, so a slow terminal only loses updates.
//
// # Output Format
//
//	[nftfolder] 12/40 completed | 1 failed | 2 active | 4.2 MiB
//	[nftfolder] 40/40 completed | 3 failed | 0 active | 18 MiB in 9s
package progress
