package engine

import (
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/glintd/glint/internal/git"
)

// startDirtyScan fans index→worktree diffs out over the shard plan. Each
// shard is allowed to contribute at most one observation per class; the
// callback stops its diff the moment nothing more can be learned from it.
func (e *Engine) startDirtyScan() {
	if !e.unstaged.Empty() && !e.untracked.Empty() {
		return
	}

	opts := git.DiffOptions{
		SkipBinaryCheck:     true,
		IgnoreSubmoduleDirt: true,
	}
	if e.untracked.Empty() {
		opts.IncludeUntracked = true
		opts.RecurseUntrackedDirs = true
	}
	opts.Notify = func(d git.Delta) git.DiffControl {
		if e.errFlag.Load() {
			return git.DiffEnd
		}
		if d.Status == git.DeltaUntracked {
			e.updateFile(&e.untracked, "untracked", d.Path)
			if e.unstaged.Empty() {
				return git.DiffSkipTree
			}
			return git.DiffEnd
		}
		e.updateFile(&e.unstaged, "unstaged", d.Path)
		if e.untracked.Empty() {
			return git.DiffSkipTree
		}
		return git.DiffEnd
	}

	idx := e.idx
	splits := e.splits
	for i := 0; i < len(splits)-1; i++ {
		o := opts
		o.RangeStart, o.RangeEnd = splits[i], splits[i+1]
		e.runAsync(func() error {
			return e.repo.DiffIndexToWorktree(idx, o)
		})
	}
}

// startStagedScan fans tree→index diffs out over the shard plan. A single
// delta proves staged changes exist, so the callback always ends its diff.
func (e *Engine) startStagedScan(head plumbing.Hash) error {
	if !e.staged.Empty() {
		return nil
	}
	tree, err := e.repo.TreeOf(head)
	if err != nil {
		return err
	}

	opts := git.DiffOptions{
		Notify: func(d git.Delta) git.DiffControl {
			e.updateFile(&e.staged, "staged", d.Path)
			return git.DiffEnd
		},
	}

	idx := e.idx
	splits := e.splits
	for i := 0; i < len(splits)-1; i++ {
		o := opts
		o.RangeStart, o.RangeEnd = splits[i], splits[i+1]
		e.runAsync(func() error {
			return e.repo.DiffTreeToIndex(tree, idx, o)
		})
	}
	return nil
}
