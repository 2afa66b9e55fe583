package agent

import "fmt"

// NoChangeReason classifies a run that produced no file changes.
type NoChangeReason string

const (
	// NoChangeAllFetchFailed: nothing could be read; retrying may help.
	NoChangeAllFetchFailed NoChangeReason = "all_fetch_failed"
	// NoChangeSomeFilesFailed: some files errored and the rest produced no
	// change.
	NoChangeSomeFilesFailed NoChangeReason = "some_files_failed"
	// NoChangeFixesUnchanged: fixes were generated but none changed content.
	NoChangeFixesUnchanged NoChangeReason = "fixes_unchanged"
	// NoChangeNoFixes: no fixes were generated at all.
	NoChangeNoFixes NoChangeReason = "no_fixes"
)

// diagnoseNoChanges explains an empty change set. files is the number of
// files attempted, fetchFailed and failed count per-file errors (fetch
// failures are a subset of failed), fixes counts generated fixes.
func diagnoseNoChanges(files, fetchFailed, failed, fixes int) (NoChangeReason, string) {
	switch {
	case files > 0 && fetchFailed == files:
		return NoChangeAllFetchFailed, fmt.Sprintf(
			"All %d file(s) failed to fetch from source control; no fixes could be computed", files)
	case failed > 0:
		return NoChangeSomeFilesFailed, fmt.Sprintf(
			"%d of %d file(s) failed and the remaining files produced no changes (%d fix(es) generated)",
			failed, files, fixes)
	case fixes > 0:
		return NoChangeFixesUnchanged, fmt.Sprintf(
			"Generated %d fix(es) but none of them changed file content", fixes)
	default:
		return NoChangeNoFixes, fmt.Sprintf(
			"No fixes were generated for %d file(s)", files)
	}
}
