package git

// RepoState reports the in-progress operation of the repository as a short
// string for prompt display: one of "merge", "revert", "revert-seq",
// "cherry", "cherry-seq", "bisect", "rebase", "rebase-i", "rebase-m",
// "am", "am/rebase", "action" for an operation that left markers we don't
// recognize, or "" when no operation is in progress.
//
// The names match gitaction in zsh's vcs_info. Detection follows git's own
// precedence: the rebase-apply and rebase-merge directories are checked
// before the single-operation marker files.
func (r *Repo) RepoState() string {
	switch {
	case r.hasGitFile("rebase-apply/rebasing"):
		return "rebase"
	case r.hasGitFile("rebase-apply/applying"):
		return "am"
	case r.hasGitFile("rebase-apply"):
		return "am/rebase"
	case r.hasGitFile("rebase-merge/interactive"):
		return "rebase-i"
	case r.hasGitFile("rebase-merge"):
		return "rebase-m"
	case r.hasGitFile("MERGE_HEAD"):
		return "merge"
	case r.hasGitFile("REVERT_HEAD"):
		if r.hasGitFile("sequencer/todo") {
			return "revert-seq"
		}
		return "revert"
	case r.hasGitFile("CHERRY_PICK_HEAD"):
		if r.hasGitFile("sequencer/todo") {
			return "cherry-seq"
		}
		return "cherry"
	case r.hasGitFile("BISECT_LOG"):
		return "bisect"
	case r.hasGitFile("sequencer/todo"), r.hasGitFile("AUTO_MERGE"):
		// Markers from an operation none of the branches above claim
		// (e.g. a sequencer run whose head file is already gone).
		return "action"
	}
	return ""
}
